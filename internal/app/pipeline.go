package app

import (
	"tipd/internal/config"
	"tipd/internal/cooldown"
	"tipd/internal/decision"
	"tipd/internal/messages"
	"tipd/internal/rules"
	"tipd/internal/tipstore"
	logx "tipd/pkg/logx"
)

// Pipeline is the config-derived part of the decision path. It is immutable
// and swapped whole on config reload.
type Pipeline struct {
	Catalog  *messages.Catalog
	Cooldown *cooldown.Policy
	Engine   *decision.Engine
}

func buildPipeline(cfg *config.Config, tips *tipstore.Storage, log logx.Logger) (*Pipeline, error) {
	overrides, err := cfg.MessageOverrides()
	if err != nil {
		return nil, err
	}
	catalog := messages.New(messages.DefaultSet(), overrides)
	policy := cooldown.New(catalog, tips, log.With(logx.String("comp", "cooldown")))

	elog := log.With(logx.String("comp", "decision"))
	engine := decision.New(catalog, decision.Helpers{Storage: tips, Cooldown: policy}, rules.Default(),
		decision.WithTrace(func(rule, typ string, matched bool) {
			elog.Trace("rule evaluated", logx.String("rule", rule), logx.String("type", typ), logx.Bool("matched", matched))
		}),
	)
	return &Pipeline{Catalog: catalog, Cooldown: policy, Engine: engine}, nil
}
