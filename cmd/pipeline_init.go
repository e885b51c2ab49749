package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/cleanup"
	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/crm"
	"github.com/sells-group/leadflow/internal/effect"
	"github.com/sells-group/leadflow/internal/enrich"
	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/monitoring"
	"github.com/sells-group/leadflow/internal/notify"
	"github.com/sells-group/leadflow/internal/oracle"
	"github.com/sells-group/leadflow/internal/outreach"
	"github.com/sells-group/leadflow/internal/reply"
	"github.com/sells-group/leadflow/internal/research"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/internal/signal"
	"github.com/sells-group/leadflow/internal/sourcing"
	"github.com/sells-group/leadflow/internal/store"
	anthropicpkg "github.com/sells-group/leadflow/pkg/anthropic"
	"github.com/sells-group/leadflow/pkg/apify"
	"github.com/sells-group/leadflow/pkg/firecrawl"
	"github.com/sells-group/leadflow/pkg/hubspot"
	"github.com/sells-group/leadflow/pkg/instantly"
	"github.com/sells-group/leadflow/pkg/jina"
	"github.com/sells-group/leadflow/pkg/notion"
	"github.com/sells-group/leadflow/pkg/perplexity"
	sfpkg "github.com/sells-group/leadflow/pkg/salesforce"
)

// externals are the third-party clients. Any of them may be nil when the
// integration is not configured; the pipeline then skips that step.
type externals struct {
	Anthropic  anthropicpkg.Client
	Jina       jina.Client
	Firecrawl  firecrawl.Client
	Perplexity perplexity.Client
	Platform   outreach.Platform
	CRM        crm.CRM
	Notifier   notify.Notifier
	Notion     notion.Client
	Apify      apify.Client
}

// appEnv holds every wired component used by the commands and the server.
type appEnv struct {
	Store        store.Store
	Ingest       *ingest.Service
	Orchestrator *enrich.Orchestrator
	Router       *reply.Router
	Syncer       *outreach.Syncer
	Cleanup      *cleanup.Policy
	Collector    *monitoring.Collector
	Checker      *monitoring.Checker
	Breakers     *resilience.ServiceBreakers
	Notifier     notify.Notifier
	Notion       notion.Client    // may be nil
	Sourcing     *sourcing.Runner // nil without an Apify token
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp opens the store, builds the clients the config enables and wires
// the pipeline. Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	ext, err := initExternals()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return assemble(cfg, st, ext), nil
}

func initExternals() (externals, error) {
	var ext externals
	log := zap.L()

	if cfg.Anthropic.Key != "" {
		ext.Anthropic = anthropicpkg.NewClient(cfg.Anthropic.Key, option.WithMaxRetries(2))
	} else {
		log.Warn("LEADFLOW_ANTHROPIC_KEY not set, signals and replies use fallback answers")
	}
	if cfg.Jina.Key != "" {
		opts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		ext.Jina = jina.NewClient(cfg.Jina.Key, opts...)
	}
	if cfg.Firecrawl.Key != "" {
		ext.Firecrawl = firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	}
	if cfg.Perplexity.Key != "" {
		ext.Perplexity = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	}

	if cfg.Instantly.Key != "" {
		ext.Platform = outreach.NewInstantly(instantly.NewClient(cfg.Instantly.Key,
			instantly.WithBaseURL(cfg.Instantly.BaseURL),
			instantly.WithRateLimit(cfg.Instantly.RateLimit),
		))
	} else {
		log.Warn("LEADFLOW_INSTANTLY_KEY not set, outreach pushes are skipped")
	}

	c, err := initCRM()
	if err != nil {
		return ext, err
	}
	ext.CRM = c

	if cfg.Slack.WebhookURL != "" {
		ext.Notifier = notify.NewSlack(cfg.Slack.WebhookURL)
	}
	if cfg.Notion.Token != "" {
		ext.Notion = notion.NewClient(cfg.Notion.Token)
	}
	if cfg.Apify.Token != "" {
		ext.Apify = apify.NewClient(cfg.Apify.Token,
			apify.WithBaseURL(cfg.Apify.BaseURL),
			apify.WithWait(time.Duration(cfg.Apify.TimeoutSecs)*time.Second),
		)
	}
	return ext, nil
}

// initCRM returns the configured CRM adapter, or nil for none or when its
// credentials are absent.
func initCRM() (crm.CRM, error) {
	switch cfg.CRM.Provider {
	case "hubspot":
		if cfg.HubSpot.Token == "" {
			zap.L().Warn("LEADFLOW_HUBSPOT_TOKEN not set, CRM sync disabled")
			return nil, nil
		}
		return crm.NewHubSpot(hubspot.NewClient(cfg.HubSpot.Token,
			hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
			hubspot.WithRateLimit(cfg.HubSpot.RateLimit),
		)), nil
	case "salesforce":
		client, err := sfpkg.Connect(sfpkg.JWTCreds{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPath:  cfg.Salesforce.KeyPath,
		})
		if err != nil {
			return nil, eris.Wrap(err, "init salesforce")
		}
		return crm.NewSalesforce(client), nil
	default:
		return nil, nil
	}
}

// assemble wires the pipeline from st and ext. Both oracles share one
// circuit breaker since they call the same API.
func assemble(c *config.Config, st store.Store, ext externals) *appEnv {
	breakers := resilience.NewServiceBreakers(c.Anthropic.Resilience.Circuit())
	notifier := ext.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	var signalOracle, replyOracle oracle.Oracle
	if ext.Anthropic != nil {
		opts := oracle.Options{
			Model:     c.Anthropic.Model,
			MaxTokens: c.Anthropic.MaxTokens,
			Timeout:   c.Anthropic.Timeout(),
		}
		sig, rep := opts, opts
		sig.System, sig.Purpose = signal.System, "signal"
		rep.System, rep.Purpose = reply.System(), "reply"
		signalOracle = oracle.New(ext.Anthropic, breakers.Get("anthropic"), sig)
		replyOracle = oracle.New(ext.Anthropic, breakers.Get("anthropic"), rep)
	}

	deps := enrich.Deps{Store: st, Oracle: signalOracle}
	if ext.Jina != nil || ext.Firecrawl != nil {
		deps.Content = research.NewContent(ext.Jina, ext.Firecrawl, c.Enrich.ContentMaxRunes)
	}
	if ext.Jina != nil || ext.Perplexity != nil {
		deps.News = research.NewNews(ext.Jina, ext.Perplexity, c.Enrich.NewsMaxItems)
	}

	syncer := outreach.New(ext.Platform, c.Outreach, outreach.WithBreaker(breakers.Get("outreach")))
	dispatcher := effect.NewDispatcher(syncer, ext.CRM, notifier, st)
	deps.Pusher = syncer
	deps.Effects = dispatcher

	ing := ingest.NewService(st)
	collector := monitoring.NewCollector(st, syncer.Platform(), notifier)

	env := &appEnv{
		Store:        st,
		Ingest:       ing,
		Orchestrator: enrich.New(deps, c.Enrich),
		Router:       reply.NewRouter(st, replyOracle, dispatcher, c.Slack.CalendlyURL),
		Syncer:       syncer,
		Cleanup:      cleanup.New(syncer.Platform(), syncer, st, notifier, c.Cleanup),
		Collector:    collector,
		Checker:      monitoring.NewChecker(collector, monitoring.NewAlerter(c.Monitoring, notifier), c.Monitoring),
		Breakers:     breakers,
		Notifier:     notifier,
		Notion:       ext.Notion,
	}
	if ext.Apify != nil {
		env.Sourcing = sourcing.New(ext.Apify, ing, st)
	}
	return env
}
