// Command admin runs maintenance tasks against the Dossier database.
package main

import (
	"log"
	"os"

	"github.com/trezcool/dossier/core"
	logsvc "github.com/trezcool/dossier/services/logger"
)

func main() {
	conf := core.NewConfig()
	zl, err := logsvc.NewZapLogger(conf, "admin")
	if err != nil {
		log.Fatalf("admin: building logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(false)

	cli := commandLine{
		conf:  conf,
		out:   os.Stdout,
		stdin: int(os.Stdin.Fd()),
	}
	err = cli.run(os.Args)
	cli.close()
	if err != nil && err != errHelp {
		logger.Error(describe(err), err)
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
