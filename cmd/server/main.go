package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/postmux/postmux/cache"
	"github.com/postmux/postmux/config"
	"github.com/postmux/postmux/fanout"
	"github.com/postmux/postmux/feed"
	"github.com/postmux/postmux/monitor"
	"github.com/postmux/postmux/runtime"
	"github.com/postmux/postmux/server"
	"github.com/postmux/postmux/store"
	"github.com/postmux/postmux/utils"
	"github.com/postmux/postmux/utils/dotenv"
	"github.com/postmux/postmux/utils/flag"
	Logger "github.com/postmux/postmux/utils/log"
	"github.com/postmux/postmux/warmup"
)

func newEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}

func main() {
	flag.ParseFlags()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	cfg := config.FromEnv()

	db, err := utils.GetDBConnection()
	if err != nil {
		panic(err)
	}
	utils.DatabaseSetupAndMigration(db)

	redisClient := utils.GetRedisClient()
	metrics := utils.NewMetricsFromEnv()

	cacheStore := cache.NewStore(redisClient)
	feedIndex := cache.NewFeedIndex(redisClient, cfg.FeedIndexBound)
	postStore := store.NewPostStore(db)
	directory := store.NewSubscriberDirectory(db)

	// Inbound events arrive on one stream, produced events leave on another,
	// so re-emitted new-posts never loop back into our own consumer.
	inboundBus := newEventBus()
	outboundBus := newEventBus()

	dispatcher := fanout.NewDispatcher(
		postStore, directory, cacheStore, feedIndex, outboundBus,
		cfg.FanoutBatchSize, cfg.CommentCacheCount, metrics)
	warmer := warmup.NewWarmer(
		postStore, directory, cacheStore, feedIndex,
		cfg.ActiveWindow, cfg.FanoutBatchSize, cfg.CommentCacheCount)
	cacheMonitor := monitor.NewMonitor(monitor.Config{
		Name:              "cache_monitor",
		ProbeInterval:     cfg.ProbeInterval,
		RetryAttempts:     cfg.ReconnectAttempts,
		BackoffBase:       cfg.ReconnectBackoffBase,
		BackoffMultiplier: cfg.ReconnectBackoffMultiplier,
	}, cacheStore, warmer)
	// Failed cache reads on the feed path short-circuit the monitor into an
	// immediate probe.
	assembler := feed.NewAssembler(
		postStore, cacheStore, feedIndex,
		cfg.FeedPageMaxSize, cfg.CommentCacheCount, metrics, cacheMonitor)

	ctx, cancel := context.WithCancel(context.Background())
	engine := runtime.NewEngine([]runtime.Module{
		// Consumes new-posts / new-comments / new-likes and drives fan-out.
		fanout.NewConsumer(fanout.ConsumerConfig{Name: "fanout_consumer"}, dispatcher, inboundBus),
		// Probes the cache store and recovers it through the warmer.
		cacheMonitor,
		// Runs warm-up at startup and on the configured schedule.
		runtime.NewScheduler(runtime.SchedulerConfig{
			Name:       "warmup_scheduler",
			Interval:   cfg.WarmupInterval,
			RunAtStart: true,
		}, warmer.WarmUp),
	}, ctx, cancel)

	go engine.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		engine.Shutdown()
		os.Exit(0)
	}()

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	server.NewServer(assembler, cacheMonitor, cfg.FeedPageDefaultSize).RegisterRoutes(router)

	Logger.Log.Info("feed server starts up")
	router.Run(":8080")
}
