// Command qaboard はQ&A掲示板のAPIサーバー・ワーカー・マイグレーションを起動する。
//
//	qaboard [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/qaboard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "qaboard: %v\n", err)
		os.Exit(1)
	}
}
