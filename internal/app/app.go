package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/box-office/internal/clock"
	"github.com/iliyamo/box-office/internal/config"
	"github.com/iliyamo/box-office/internal/handler"
	"github.com/iliyamo/box-office/internal/middleware"
	"github.com/iliyamo/box-office/internal/queue"
	"github.com/iliyamo/box-office/internal/repository"
	"github.com/iliyamo/box-office/internal/router"
	"github.com/iliyamo/box-office/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired box office process.
type App struct {
	addr      string
	log       *logrus.Entry
	store     repository.Store
	echo      *echo.Echo
	sweeper   *service.Sweeper
	consumer  *queue.Consumer
	publisher *queue.AMQPPublisher
	redis     *redis.Client
}

// Options override pieces that are otherwise built from Config.
type Options struct {
	Store repository.Store
	Clock clock.Clock
	Redis *redis.Client
}

// New wires an App around store.  Redis is optional: without it the rate
// limiter and the metrics cache are left out.
func New(cfg config.Config, log *logrus.Entry, opts Options) *App {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	a := &App{
		addr:  net.JoinHostPort("", cfg.Port),
		log:   log,
		store: opts.Store,
		redis: opts.Redis,
	}

	svcOpts := []service.Option{service.WithExpiringSoonWindow(cfg.ExpiringSoonWindow)}
	if cfg.PublishBookings() {
		a.publisher = queue.NewAMQPPublisher(cfg.RabbitMQURL, log)
		svcOpts = append(svcOpts, service.WithPublisher(a.publisher))
	}
	svc := service.New(a.store, clk, svcOpts...)

	deps := router.Deps{
		Handler:        handler.NewReservationHandler(svc),
		OperatorSecret: cfg.OperatorJWTSecret,
	}
	if a.redis != nil {
		if rl := config.LoadRateLimitConfig(); rl.Enabled {
			deps.RateLimit = middleware.NewTokenBucket(rl, a.redis)
		}
		if cc := config.LoadCacheConfig(); cc.Enabled {
			deps.Cache = middleware.NewRedisCache(cc, a.redis)
		}
	}
	a.echo = router.New(deps)

	a.sweeper = service.NewSweeper(a.store, clk, cfg.SweepInterval, log)
	if cfg.BookingConsumerEnabled {
		a.consumer = queue.NewConsumer(cfg.RabbitMQURL, cfg.BookingLogDir, log)
	}
	return a
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.echo }

// Run serves HTTP and runs the sweeper, the booking publisher and the
// booking consumer (the last two when enabled) until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.WithField("addr", a.addr).Info("http server listening")
		if err := a.echo.Start(a.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("shutting down http server")
		return a.echo.Shutdown(sctx)
	})
	g.Go(func() error { return a.sweeper.Run(ctx) })
	if a.publisher != nil {
		g.Go(func() error { return a.publisher.Run(ctx) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(ctx) })
	}

	return g.Wait()
}

// Close releases the store and the Redis client.  The publisher's broker
// connection is closed when Run returns.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
