// Command lirasm assembles a YAML program and prints the result.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/lirasm/asm"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/program"
	"github.com/sarchlab/lirasm/verify"
)

var (
	dumpFlag   = flag.Bool("dump", false, "print the final instruction table")
	hexFlag    = flag.Bool("hex", true, "print the output buffer as a hex dump")
	verifyFlag = flag.Bool("verify", true, "lint the assembled unit")
	reportFlag = flag.String("report", "", "write the verification report to a file")
	logFlag    = flag.String("log", "", "write a JSON trace log to a file")
	retryFlag  = flag.Int("max-retries", -1, "override the relaxation retry limit")
	listFlag   = flag.Bool("targets", false, "list the known targets and exit")
)

func setupLogging() {
	if *logFlag == "" {
		return
	}

	f, err := os.Create(*logFlag)
	if err != nil {
		atexit.Fatalf("failed to create log file: %v", err)
	}
	atexit.Register(func() { f.Close() })

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: asm.LevelTrace,
	})

	slog.SetDefault(slog.New(handler))
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] program.yaml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		for _, name := range isa.Targets() {
			fmt.Println(name)
		}
		atexit.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		atexit.Exit(2)
	}

	setupLogging()

	u, err := program.LoadProgramFile(flag.Arg(0))
	if err != nil {
		atexit.Fatalf("%v", err)
	}

	b := asm.NewBuilder().
		WithISA(u.ISA).
		WithStartOffset(u.StartOffset)
	if u.MaxRetries != nil {
		b = b.WithMaxRetries(*u.MaxRetries)
	}
	if *retryFlag >= 0 {
		b = b.WithMaxRetries(*retryFlag)
	}
	a := b.Build("LIRAsm")

	res := a.Assemble(u.List, u.Pools)

	fmt.Printf("code %d bytes, data at %d, total %d bytes, %d attempts, %d expansions\n",
		res.CodeSize, res.DataOffset, res.TotalSize, res.Attempts, res.Expansions)

	if *dumpFlag {
		fmt.Println(asm.Dump(u.ISA, u.List))
	}

	if *hexFlag {
		fmt.Print(hex.Dump(res.Code))
	}

	if !*verifyFlag && *reportFlag == "" {
		atexit.Exit(0)
	}

	report := verify.GenerateReport(u.ISA, u.List, res)
	if *reportFlag != "" {
		if err := report.SaveReportToFile(*reportFlag); err != nil {
			atexit.Fatalf("%v", err)
		}
	} else {
		report.WriteReport(os.Stdout)
	}

	if !report.OK() {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
