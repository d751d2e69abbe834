package main

import (
    "log"

    "github.com/spf13/cobra"

    nodecli "github.com/amirimatin/go-searchnode/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "searchnode",
        Short:         "search node provisioning agent",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    nodecli.AddAll(root)
    return root
}
