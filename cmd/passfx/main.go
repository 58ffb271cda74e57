package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := disableCoreDumps(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to disable core dumps: %v\n", err)
	}

	// Lock the session before dying so key material is wiped on ^C.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		if sess != nil {
			sess.Close()
		}
		os.Exit(130)
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeSession()
		os.Exit(1)
	}
	closeSession()
}
