// Command devtoken prints a bearer token for local testing.
//
//	devtoken -sub seller-1 -ttl 2h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/campus-marketplace/internal/utils"
)

func main() {
	_ = godotenv.Load()
	sub := flag.String("sub", "", "actor id placed in the sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	tok, err := utils.MintToken(os.Getenv("JWT_SECRET"), *sub, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
