// Package pipeline wires selection, composition, and publishing into one
// publish attempt. Content and generation failures degrade to fallback text;
// only the publishing stage itself can fail the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"postpilot/internal/compose"
	"postpilot/internal/config"
	"postpilot/internal/history"
	"postpilot/internal/news"
	"postpilot/internal/publisher"
)

// Pipeline runs one end-to-end publish attempt. The collaborator fields are
// function-valued so tests can substitute them.
type Pipeline struct {
	cfg   *config.Config
	log   *zap.Logger
	store *history.Store

	fetch       news.FetchFunc
	generate    compose.GenerateFunc
	openSession func(ctx context.Context) (publisher.Session, error)
	publish     func(ctx context.Context, s publisher.Session, creds publisher.Credentials, text string) publisher.Result
}

// New builds a pipeline with the real collaborators.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}

	client := news.NewClient(news.ClientConfig{
		BaseURL:  cfg.News.BaseURL,
		APIKey:   cfg.News.APIKey,
		Query:    cfg.News.Query,
		Language: cfg.News.Language,
		PageSize: cfg.News.PageSize,
	}, log)

	machine := publisher.NewMachine(log, cfg.Publisher.ArtifactsDir)

	sessionCfg := publisher.SessionConfig{
		Headless:          cfg.Publisher.Headless,
		ViewportWidth:     cfg.Publisher.ViewportWidth,
		ViewportHeight:    cfg.Publisher.ViewportHeight,
		NavigationTimeout: time.Duration(cfg.Publisher.NavigationTimeoutMs) * time.Millisecond,
	}

	return &Pipeline{
		cfg:      cfg,
		log:      log,
		store:    history.NewStore(cfg.History.Path, log),
		fetch:    client.FetchBatch,
		generate: compose.NewGenerator(compose.GeneratorConfig{
			APIKey:    cfg.Generation.APIKey,
			BaseURL:   cfg.Generation.BaseURL,
			Model:     cfg.Generation.Model,
			MaxTokens: cfg.Generation.MaxTokens,
		}),
		openSession: func(ctx context.Context) (publisher.Session, error) {
			return publisher.NewRodSession(ctx, sessionCfg)
		},
		publish: machine.Run,
	}
}

// Run executes one publish attempt: select, record, compose, publish. The
// browser session is released on every exit path.
func (p *Pipeline) Run(ctx context.Context) error {
	entries := p.store.Load()
	p.log.Info("history loaded",
		zap.Int("entries", len(entries)),
		zap.String("path", p.store.Path()))

	var text string
	cand, err := news.Select(ctx, p.fetch, history.Titles(entries), p.cfg.News.MaxPages)
	if err != nil {
		if !errors.Is(err, news.ErrNoContent) {
			return err
		}
		// Designed-for degraded path: no provider content means the
		// fixed fallback is posted, bypassing the composer entirely.
		p.log.Warn("no content available, publishing fallback text", zap.Error(err))
		text = compose.FallbackText
	} else {
		p.log.Info("candidate selected",
			zap.String("title", cand.Title),
			zap.String("source", cand.Source))

		// Record before composing so a crash later never loses the
		// dedup signal for future runs.
		entries, err = p.store.Record(history.Entry{
			Title:       cand.Title,
			URL:         cand.URL,
			PublishedAt: cand.PublishedAt,
			RecordedAt:  time.Now().UTC(),
		}, entries)
		if err != nil {
			p.log.Warn("history persist failed; future runs may repeat this item",
				zap.Error(err))
		}

		text = compose.Compose(ctx, cand, p.generate, p.log)
	}

	p.log.Info("publishing", zap.Int("chars", len([]rune(text))))

	sess, err := p.openSession(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			p.log.Warn("session close failed", zap.Error(closeErr))
		}
	}()

	creds := publisher.Credentials{
		Email:    p.cfg.Account.Email,
		Handle:   p.cfg.Account.Handle,
		Password: p.cfg.Account.Password,
	}

	res := p.publish(ctx, sess, creds, text)
	switch res.Outcome {
	case publisher.OutcomePublished:
		p.log.Info("post confirmed", zap.String("artifact", res.Artifact))
		return nil
	case publisher.OutcomePublishedUnconfirmed:
		p.log.Info("post submitted, confirmation not observed",
			zap.String("artifact", res.Artifact))
		return nil
	default:
		var critical *publisher.CriticalError
		if errors.As(res.Err, &critical) {
			p.log.Error("generated content could not be delivered",
				zap.String("stage", string(res.Stage)),
				zap.String("artifact", res.Artifact),
				zap.Error(res.Err))
		} else {
			p.log.Error("publish attempt aborted",
				zap.String("stage", string(res.Stage)),
				zap.String("artifact", res.Artifact),
				zap.Error(res.Err))
		}
		return res.Err
	}
}
