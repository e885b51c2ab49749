package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/reply"
	"github.com/sells-group/leadflow/internal/sourcing"
	"github.com/sells-group/leadflow/internal/store"
)

var (
	ingestSource      string
	ingestCampaignTag string
	enrichBatchSize   int
	cleanupMax        int
	leadsStatus       string
	leadsTier         string
	leadsLimit        int
	replyIn           reply.Inbound
	scrapeInput       string
	scrapeCampaignTag string
	scrapeLimit       int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Import leads",
}

var ingestCSVCmd = &cobra.Command{
	Use:   "csv <file>",
	Short: "Import leads from a CSV file with a header row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raws, err := ingest.ReadCSVFile(args[0])
		if err != nil {
			return err
		}
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		source := model.Source(ingestSource)
		if source == "" {
			source = model.SourceCSV
		}
		res, err := env.Ingest.Ingest(cmd.Context(), raws, source, ingestCampaignTag)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var ingestNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Import queued leads from the Notion lead database",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Notion == nil || cfg.Notion.LeadDB == "" {
			return eris.New("notion is not configured (LEADFLOW_NOTION_TOKEN, LEADFLOW_NOTION_LEAD_DB)")
		}
		res, err := env.Ingest.ImportNotion(cmd.Context(), env.Notion, cfg.Notion.LeadDB, ingestCampaignTag)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich, score and route the oldest ingested leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.RunBatch(cmd.Context(), enrichBatchSize)
		if err != nil {
			return err
		}
		fmt.Println(res)
		return printJSON(res.Results)
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Classify and route one inbound reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Router.Handle(cmd.Context(), replyIn)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale leads from outreach campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Cleanup.Run(cmd.Context(), cleanupMax)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Generate and post the pipeline report",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.Collector.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(rep)
	},
}

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.FindLeads(cmd.Context(), store.LeadFilter{
			Status: model.LeadStatus(leadsStatus),
			Tier:   model.Tier(leadsTier),
			Limit:  leadsLimit,
		})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tCOMPANY\tSTATUS\tTIER\tSCORE") //nolint:errcheck
		for _, l := range leads {
			score := "-"
			if l.Score != nil {
				score = fmt.Sprint(*l.Score)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Email, l.CompanyName, l.Status, l.Tier, score) //nolint:errcheck
		}
		return tw.Flush()
	},
}

var requeueCmd = &cobra.Command{
	Use:   "requeue <lead-id>",
	Short: "Return a failed lead to the enrichment queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Orchestrator.Requeue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("lead %s requeued (%s)\n", lead.ID, lead.Status)
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <actor>",
	Short: "Run an Apify actor and ingest its dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := sourcing.Request{ActorID: args[0], CampaignTag: scrapeCampaignTag, Limit: scrapeLimit}
		if scrapeInput != "" {
			if err := json.Unmarshal([]byte(scrapeInput), &req.Input); err != nil {
				return eris.Wrap(err, "parse --input")
			}
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Sourcing == nil {
			return eris.New("apify is not configured (LEADFLOW_APIFY_TOKEN)")
		}
		res, err := env.Sourcing.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		fmt.Printf("%s schema is up to date\n", cfg.Store.Driver)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		if _, err := cmd.OutOrStdout().Write(out); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err) //nolint:errcheck
		}
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestCampaignTag, "campaign-tag", "", "campaign tag stamped on every lead")
	ingestCSVCmd.Flags().StringVar(&ingestSource, "source", "", "lead source (default csv)")
	ingestCmd.AddCommand(ingestCSVCmd, ingestNotionCmd)

	enrichCmd.Flags().IntVar(&enrichBatchSize, "batch-size", 0, "leads per batch (default from config, capped at enrich.max_batch_size)")

	replyCmd.Flags().StringVar(&replyIn.Email, "email", "", "sender email")
	replyCmd.Flags().StringVar(&replyIn.ReplyText, "text", "", "reply body")
	replyCmd.Flags().StringVar(&replyIn.CampaignID, "campaign-id", "", "outreach campaign the reply came from")
	replyCmd.Flags().StringVar(&replyIn.FirstName, "first-name", "", "sender first name")
	replyCmd.Flags().StringVar(&replyIn.CompanyName, "company", "", "sender company")
	_ = replyCmd.MarkFlagRequired("email")
	_ = replyCmd.MarkFlagRequired("text")

	cleanupCmd.Flags().IntVar(&cleanupMax, "max-deletions", 0, "deletion cap for this run (default from config)")

	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status")
	leadsCmd.Flags().StringVar(&leadsTier, "tier", "", "filter by tier")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum rows")

	scrapeCmd.Flags().StringVar(&scrapeInput, "input", "", "actor input as a JSON object")
	scrapeCmd.Flags().StringVar(&scrapeCampaignTag, "campaign-tag", "", "campaign tag stamped on every lead")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 1000, "maximum dataset items")

	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(ingestCmd, enrichCmd, replyCmd, cleanupCmd, dashboardCmd,
		leadsCmd, requeueCmd, scrapeCmd, migrateCmd, configCmd)
}
