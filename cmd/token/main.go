// Command token mints a service token for the internal and admin routes.
//
//	token -role ORDER_SERVICE -tenant 7 -sub order-pipeline -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/seat-inventory/internal/utils"
)

func main() {
	role := flag.String("role", "ORDER_SERVICE", "ADMIN or ORDER_SERVICE")
	tid := flag.Uint64("tenant", 0, "tenant id carried in the tid claim")
	sub := flag.String("sub", "service", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	tok, err := utils.NewServiceToken(os.Getenv("JWT_SECRET"), *sub, *role, *tid, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
