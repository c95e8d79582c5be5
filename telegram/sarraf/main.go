package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
	"github.com/muzaffarov/exchange-bot/telegram/trade"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	GitCommit string
	BuildDate string
	Version   string
)

type envConfig struct {
	token     string
	venueURL  string
	operators []int64
	redisAddr string
	redisPass string
	redisDB   int
}

func loadConfig() (envConfig, error) {
	var cfg envConfig
	var ok bool
	if cfg.token, ok = os.LookupEnv("EXCHANGE_BOT_TOKEN"); !ok {
		return cfg, &exchange.ConfigError{Key: "EXCHANGE_BOT_TOKEN", Reason: "not set"}
	}
	if cfg.venueURL, ok = os.LookupEnv("EXCHANGE_VENUE_URL"); !ok {
		return cfg, &exchange.ConfigError{Key: "EXCHANGE_VENUE_URL", Reason: "not set"}
	}
	// operators may legitimately be absent; that is a locked-down
	// state, not open access
	for _, field := range strings.Split(os.Getenv("EXCHANGE_OPERATORS"), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return cfg, &exchange.ConfigError{Key: "EXCHANGE_OPERATORS", Reason: "not a chat id: " + field}
		}
		cfg.operators = append(cfg.operators, id)
	}
	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPass = os.Getenv("REDIS_PASSWORD")
	if dbs := os.Getenv("REDIS_DB"); dbs != "" {
		db, err := strconv.Atoi(dbs)
		if err != nil {
			return cfg, &exchange.ConfigError{Key: "REDIS_DB", Reason: "not a number"}
		}
		cfg.redisDB = db
	}
	return cfg, nil
}

func buildBot(cfg envConfig, reminderEvery time.Duration) (*telegram.Bot, error) {
	var store exchange.Store
	if cfg.redisAddr != "" {
		rs, err := exchange.NewRedisStore(cfg.redisAddr, cfg.redisPass, cfg.redisDB)
		if err != nil {
			return nil, err
		}
		store = rs
	} else {
		log.Warn("REDIS_ADDR not set, state is in memory and dies with the process")
		store = exchange.NewMemoryStore()
	}

	currencies, err := exchange.NewCurrencies(context.Background(), store)
	if err != nil {
		return nil, err
	}
	oracle := exchange.NewVenueOracle(cfg.venueURL)
	quoter := exchange.NewQuoter(oracle, currencies)
	ledger := exchange.NewLedger(store)
	users := exchange.NewUsers(store)
	sessions := exchange.NewSessions(currencies)
	operators := telegram.NewOperators(cfg.operators)

	bot, err := telegram.NewMessageBot(
		cfg.token,
		telegram.SetHelp("I exchange crypto for you. Start with /trade, check /rates, abort with /cancel."),
		telegram.SetHandleFromNow(true),
		telegram.SetVersion(Version),
	)
	if err != nil {
		return nil, err
	}
	bot.RenderError = trade.RenderError

	approvals := trade.NewApprovals(ledger, operators, bot.Bot())
	approvals.Serve(bot)

	admin := trade.NewAdmin(currencies, ledger, users, operators)
	commands := []telegram.Command{
		trade.NewTrade(sessions, quoter, ledger, currencies, users, approvals),
		trade.NewCancelCommand(sessions),
		trade.NewRates(quoter, currencies),
	}
	commands = append(commands, admin.Commands()...)
	if err = bot.RegisterCommand(commands...); err != nil {
		return nil, err
	}

	reminder := trade.NewReminder(ledger, operators, reminderEvery)
	if err = reminder.Start(bot); err != nil {
		return nil, err
	}
	bot.TeardownEvent.Subscribe(func(*telegram.Bot, os.Signal) error {
		reminder.Stop()
		return nil
	})
	return bot, nil
}

func main() {
	var (
		envFile       string
		debug         bool
		reminderEvery time.Duration
	)

	cliApp := cli.NewApp()
	cliApp.Name = "sarraf"
	cliApp.Usage = "telegram currency exchange desk"
	cliApp.Version = Version
	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "env-file",
			Value:       ".env",
			Destination: &envFile,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Destination: &debug,
		},
		&cli.DurationFlag{
			Name:        "remind-every",
			Value:       15 * time.Minute,
			Destination: &reminderEvery,
		},
	}
	cliApp.Action = func(_ *cli.Context) error {
		if err := godotenv.Load(envFile); err != nil {
			log.Infof("no env file loaded (%v), using process env", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			// refuse to start rather than run half-configured
			return err
		}
		b, err := buildBot(cfg, reminderEvery)
		if err != nil {
			return err
		}
		b.SetDebug(debug)
		if err = b.Init(); err != nil {
			return err
		}
		log.Infof("sarraf %s (%s, %s) listening", Version, GitCommit, BuildDate)
		b.Listen(60)
		return nil
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
