package cron

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"meetsync/config"
	archiveRepo "meetsync/database/repository/archive"
	sessionRepo "meetsync/database/repository/session"
	"meetsync/models"
	"meetsync/utils"
)

const TypeSessionSweep = "session:sweep"

// InitSweepWorker runs the async worker and its periodic scheduler in the
// background. The sweep closes negotiations nobody has touched in
// STALE_SESSION_DAYS so abandoned threads do not stay active forever.
func InitSweepWorker(sessions sessionRepo.SessionRepository, archive archiveRepo.ArchiveRepository) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSweepDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSessionSweep, handleSweepTask(sessions, archive))

	scheduler := asynq.NewScheduler(redisOpts, nil)
	if _, err := scheduler.Register("@every 1h", asynq.NewTask(TypeSessionSweep, nil)); err != nil {
		log.Printf("[SweepWorker] failed to register sweep schedule: %v", err)
	}

	go monitorRedisConnection()

	go func() {
		log.Println("[SweepWorker] starting scheduler...")
		if err := scheduler.Run(); err != nil {
			log.Printf("[SweepWorker] scheduler stopped: %v", err)
		}
	}()

	go func() {
		log.Println("[SweepWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[SweepWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[SweepWorker] max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleSweepTask(sessions sessionRepo.SessionRepository, archive archiveRepo.ArchiveRepository) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		logger := utils.GetLogger()

		staleDays := config.AppConfig.StaleSessionDays
		if staleDays <= 0 {
			staleDays = 14
		}
		cutoff := time.Now().AddDate(0, 0, -staleDays)

		threadIDs, err := sessions.ActiveThreadIDs(ctx)
		if err != nil {
			logger.Error("sweep: failed to list active sessions", zap.Error(err))
			return err
		}

		swept := 0
		for _, threadID := range threadIDs {
			sess, err := sessions.Load(ctx, threadID)
			if err != nil {
				logger.Warn("sweep: failed to load session",
					zap.String("threadID", threadID), zap.Error(err))
				continue
			}
			if sess.State.IsTerminal() || sess.UpdatedAt.After(cutoff) {
				continue
			}

			outcome := models.SessionOutcome{
				Kind:   models.OutcomeCancelled,
				Reason: "closed automatically after inactivity",
			}
			sess.State = models.StateCancelled
			sess.Outcome = &outcome
			if err := sessions.CompareAndSwap(ctx, sess); err != nil {
				// Someone touched the session between Load and here; it is no
				// longer stale.
				continue
			}
			if err := sessions.MarkTerminal(ctx, threadID); err != nil {
				logger.Warn("sweep: failed to mark session terminal",
					zap.String("threadID", threadID), zap.Error(err))
			}
			if archive != nil {
				if err := archive.Save(ctx, sess); err != nil {
					logger.Warn("sweep: failed to archive session",
						zap.String("threadID", threadID), zap.Error(err))
				}
			}
			swept++
		}

		logger.Info("sweep finished",
			zap.Int("active", len(threadIDs)),
			zap.Int("swept", swept))
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSweepDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[SweepWorker] redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
