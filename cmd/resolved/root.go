package main

import (
	"context"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
)

type rootFlags struct {
	provider     string
	apiKey       string
	modelName    string
	mongoURI     string
	mongoDB      string
	redisAddr    string
	policyFile   string
	tenant       string
	concurrent   bool
	debug        bool
	seedFixtures bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "resolved",
		Short: "Delivery exception resolution service",
		Long: `resolved hosts a supervisor and a set of specialist agents (orders,
payments, warehouse, notifications) that resolve delivery exceptions. The
supervisor classifies each exception against a declarative policy and
delegates actions to the specialists.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.provider, "provider", "anthropic", "Model provider (anthropic or openai)")
	pf.StringVar(&flags.apiKey, "api-key", "", "Provider API key (defaults to ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	pf.StringVar(&flags.modelName, "model", "", "Model identifier (defaults to the provider's recommended model)")
	pf.StringVar(&flags.mongoURI, "mongo-uri", "", "MongoDB URI for the domain store (empty uses the in-memory store)")
	pf.StringVar(&flags.mongoDB, "mongo-db", "resolve", "MongoDB database name")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "Redis address for Pulse event streams (empty buffers events in memory)")
	pf.StringVar(&flags.policyFile, "policy", "", "YAML policy file overriding the built-in decision table")
	pf.StringVar(&flags.tenant, "tenant", "default", "Tenant identifier scoping all tool side effects")
	pf.BoolVar(&flags.concurrent, "concurrent-dispatch", false, "Execute multiple delegations issued in one model turn in parallel")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&flags.seedFixtures, "seed-fixtures", false, "Seed sample orders and inventory into the store at startup")

	cmd.AddCommand(newResolveCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newAgentsCmd(flags))
	return cmd
}

// logContext builds the clue logging context used by every subcommand.
func logContext(flags *rootFlags) context.Context {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if flags.debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	return ctx
}
