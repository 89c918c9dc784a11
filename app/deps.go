package app

import (
	"context"
	"fmt"
	"time"

	"bitwise74/smart-librarian/aws"
	"bitwise74/smart-librarian/config"
	"bitwise74/smart-librarian/db"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/internal/rag"
	"bitwise74/smart-librarian/internal/service"
	"bitwise74/smart-librarian/internal/speech"
	"bitwise74/smart-librarian/pkg/security"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewDeps opens the databases and builds every service. The returned
// function stops background workers and must be called on shutdown. On
// error everything started so far is released.
func NewDeps(ctx context.Context, cfg *config.Config) (d *internal.Deps, _ func(), err error) {
	var closers []func()

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	userDB, err := db.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	closers = append(closers, func() {
		if sqlDB, err := userDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	d, err = newCoreDeps(cfg, userDB)
	if err != nil {
		return nil, nil, err
	}

	// Retention jobs
	cleanup, err := service.StartCleanup(cfg.Codes.CleanupSchedule, cfg.Codes.Retention(), d.Codes)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { <-cleanup.Stop().Done() })

	if cfg.OpenAI.APIKey != "" && cfg.Retrieval.DSN != "" {
		r, closeRAG, err := newRecommender(cfg)
		if err != nil {
			return nil, nil, err
		}

		d.Recommender = r
		closers = append(closers, closeRAG)
	} else {
		zap.L().Warn("OpenAI key or retrieval DSN missing, recommendations disabled")
	}

	if cfg.TTS.Enabled {
		t, err := newTTS(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		d.TTS = t
	}

	// Started last so no error path above has workers to stop
	d.Mail.StartWorkerPool()
	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := d.Mail.Stop(ctx); err != nil {
			zap.L().Warn("Mail queue did not drain in time", zap.Int("pending", d.Mail.Pending()))
		}
	})

	return d, closeAll, nil
}

// newCoreDeps builds the account services on top of an open database. The
// mail queue is created but not started.
func newCoreDeps(cfg *config.Config, userDB *gorm.DB) (*internal.Deps, error) {
	argon := security.New(cfg.Argon.Memory, cfg.Argon.Iterations, cfg.Argon.Parallelism)

	tokens, err := security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.AccessTTL(), cfg.JWT.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer, %w", err)
	}

	var mailer service.Mailer = service.LogMailer{}
	if cfg.Mail.Enabled() {
		mailer = service.NewSMTPMailer(cfg.Mail)
	} else {
		zap.L().Warn("No SMTP host configured, mail will only be logged")
	}

	queue := service.NewMailQueue(mailer, cfg.Mail.QueueSize, cfg.Mail.Workers, cfg.Mail.MaxRetries)

	users := service.NewUserStore(userDB, argon)
	codes := service.NewCodeEngine(userDB, cfg.Codes.TTL(), cfg.Codes.MaxAttempts)

	if cfg.App.DebugEmailCodes {
		zap.L().Warn("Verification codes will be written to the log")
	}

	return &internal.Deps{
		Cfg:     cfg,
		DB:      userDB,
		Argon:   argon,
		Tokens:  tokens,
		Users:   users,
		Codes:   codes,
		Auth:    service.NewAuthService(users, codes, tokens, queue, cfg.App.DebugEmailCodes),
		Mail:    queue,
		Profile: service.NewProfileService(userDB),
	}, nil
}

func newRecommender(cfg *config.Config) (*rag.Recommender, func(), error) {
	booksDB, err := db.NewBooks(cfg.Retrieval.DSN)
	if err != nil {
		return nil, nil, err
	}

	oai, err := rag.NewOpenAI(cfg.OpenAI, cfg.Retrieval.Dimensions, time.Duration(cfg.Retrieval.EmbedCacheTTL)*time.Second)
	if err != nil {
		return nil, nil, err
	}

	r := rag.NewRecommender(oai, rag.NewPGStore(booksDB), oai, cfg.Retrieval.TopK, cfg.Retrieval.MaxDistance)

	return r, func() { oai.Close() }, nil
}

func newTTS(ctx context.Context, cfg *config.Config) (*speech.Service, error) {
	awsCfg, err := aws.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	var audioCache speech.AudioCache
	if cfg.TTS.Bucket != "" {
		s3, err := aws.NewS3(ctx, awsCfg, cfg.AWS.Endpoint, cfg.TTS.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		audioCache = s3
	}

	synth := speech.NewPolly(aws.NewPolly(awsCfg), cfg.TTS.Engine)

	return speech.NewService(synth, audioCache, cfg.TTS.Voice), nil
}
