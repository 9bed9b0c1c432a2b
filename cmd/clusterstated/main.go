package main

import (
    "log"

    "github.com/spf13/cobra"

    statecli "github.com/amirimatin/go-clusterstate/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "clusterstated",
        Short:         "cluster state aggregator daemon and CLI",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    // Attach all aggregator commands from pkg/cli for reuse in services
    statecli.AddAll(root)
    return root
}
