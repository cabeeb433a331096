// Command dyncache runs the caching reverse proxy and manages tags of a
// shared cache.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dyncache",
		Short:         "Tagged dynamic cache",
		Long:          "Serve a caching reverse proxy backed by the dynamic cache, or invalidate tags of a shared cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(), invalidateCmd(), keysCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
