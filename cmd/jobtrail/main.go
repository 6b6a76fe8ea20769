// Command jobtrail は応募管理サービスのエントリーポイント。
// サブコマンド: serve（デフォルト）, worker, migrate, export, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/jobtrail/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "jobtrail: %v\n", err)
		os.Exit(1)
	}
}
