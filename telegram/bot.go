package telegram

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

type EventHandle[T any] struct {
	handlers []HandleFunc[T]
	eventMu  sync.RWMutex
}

type HandleFunc[T any] func(b *Bot, event T) error

func (handle *EventHandle[T]) Subscribe(handler HandleFunc[T]) {
	handle.eventMu.Lock()
	defer handle.eventMu.Unlock()
	newHandlers := make([]HandleFunc[T], len(handle.handlers)+1)
	copy(newHandlers, handle.handlers)
	newHandlers[len(handle.handlers)] = handler
	handle.handlers = newHandlers
}

func (handle *EventHandle[T]) dispatch(b *Bot, event T, onErr func(err error)) {
	handle.eventMu.RLock()
	defer func() {
		handle.eventMu.RUnlock()
		if pan := recover(); pan != nil {
			log.Errorf("event panic: %v\n%s", pan, debug.Stack())
		}
	}()
	for _, handler := range handle.handlers {
		if err := handler(b, event); err != nil {
			log.Error(err)
			onErr(err)
		}
	}
}

type Bot struct {
	bot      *tgbotapi.BotAPI
	commands map[string]Command
	help     string

	TeardownEvent      EventHandle[os.Signal]
	CallBackQueryEvent EventHandle[tgbotapi.CallbackQuery]
	UpdateEvent        EventHandle[tgbotapi.Update]
	commandMatchEvent  map[string]*EventHandle[tgbotapi.Update]

	// RenderError turns a component error into user-facing text.
	// The Listen loop is the only place errors become messages.
	RenderError func(err error) string

	handleFromNow bool
	version       string
	debug         bool
}

func (b *Bot) SetDebug(debug bool) {
	b.debug = debug
}

func (b *Bot) TGCommands() []tgbotapi.BotCommand {
	var cmd []tgbotapi.BotCommand
	for _, v := range b.commands {
		cmd = append(cmd, v.ID())
	}
	return cmd
}

func (b *Bot) ReplyTo(m tgbotapi.Message, msg string, o ...interface{}) {
	var text string
	if len(o) > 0 {
		text = fmt.Sprintf(msg, o...)
	} else {
		text = msg
	}
	if _, err := b.Bot().Send(tgbotapi.NewMessage(m.Chat.ID, text)); err != nil {
		log.WithField("chat", m.Chat.ID).Errorf("reply failed: %v", err)
	}
}

// Sendf addresses a chat out-of-band, e.g. operator to user.
func (b *Bot) Sendf(id int64, msg string, o ...interface{}) {
	if _, err := b.Bot().Send(tgbotapi.NewMessage(id, fmt.Sprintf(msg, o...))); err != nil {
		log.WithField("chat", id).Errorf("send failed: %v", err)
	}
}

func (b *Bot) Bot() *tgbotapi.BotAPI {
	return b.bot
}

func (b *Bot) RegisterCommand(commands ...Command) error {
	for _, command := range commands {
		b.commands[command.ID().Command] = command
		err := command.Serve(b)
		if err != nil {
			return err
		}
	}
	return b.Bot().SetMyCommands(b.TGCommands())
}

// Init should be called before Listen.
func (b *Bot) Init() error {
	for id, cmd := range b.commands {
		log.Printf("init command %s", id)
		cmd.Init()
	}
	return nil
}

// Listen starts the bot main server loop.
func (b *Bot) Listen(timeout int) {
	startListenDate := time.Now()
	updates, _ := b.Bot().GetUpdatesChan(tgbotapi.UpdateConfig{
		Offset:  0,
		Limit:   0,
		Timeout: timeout,
	})

	// teardown on keyboard interrupt, docker stop, etc
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, os.Kill)
	go func() {
		for sig := range c {
			log.Printf("signal %v received, exiting gracefully...", sig)
			b.TeardownEvent.dispatch(b, sig, ignoreErr)
			b.Bot().StopReceivingUpdates()
			return
		}
	}()

	for update := range updates {
		if b.debug {
			log.Printf("update: %+v", update)
		}
		sendErr := func(err error) {
			var id int64
			switch {
			case update.Message != nil:
				id = update.Message.Chat.ID
			case update.CallbackQuery != nil:
				id = update.CallbackQuery.Message.Chat.ID
			default:
				return
			}
			text := err.Error()
			if b.RenderError != nil {
				text = b.RenderError(err)
			}
			_, _ = b.Bot().Send(tgbotapi.NewMessage(id, text))
		}

		if update.CallbackQuery != nil {
			b.CallBackQueryEvent.dispatch(b, *update.CallbackQuery, sendErr)
		}
		if update.Message != nil {
			updateTime := time.Unix(int64(update.Message.Date), 0)
			if b.handleFromNow && updateTime.Before(startListenDate) {
				log.Printf("update is too old, ignore %d", update.UpdateID)
				continue
			}
			switch {
			case update.Message.IsCommand():
				cmdString := update.Message.Command()
				if isSysCommand(cmdString) {
					sysCommand(b, update)
				}
				if h, ok := b.commandMatchEvent[cmdString]; ok {
					if ok2, reason := b.authorize(cmdString, update); !ok2 {
						b.ReplyTo(*update.Message, "Access denied, reason: %s", reason)
					} else {
						h.dispatch(b, update, sendErr)
					}
				}
			default:
				b.UpdateEvent.dispatch(b, update, sendErr)
			}
		}
	}
	log.Println("update exhausted, exit")
}

func ignoreErr(err error) {
	log.Error(err)
}

func (b *Bot) Match(c Command) *EventHandle[tgbotapi.Update] {
	e := new(EventHandle[tgbotapi.Update])
	b.commandMatchEvent[c.ID().Command] = e
	return e
}

func (b *Bot) authorize(cmd string, update tgbotapi.Update) (bool, string) {
	command, ok := b.commands[cmd]
	if !ok {
		return false, ""
	}
	return command.Authorize().Validate(update)
}

type BotWrapperConfig func(b *Bot)

func SetHelp(help string) BotWrapperConfig {
	return func(b *Bot) {
		b.help = help
	}
}

// SetHandleFromNow ignores updates queued before the Listen loop
// started.
func SetHandleFromNow(yes bool) BotWrapperConfig {
	return func(b *Bot) {
		b.handleFromNow = yes
	}
}

func SetVersion(version string) BotWrapperConfig {
	return func(b *Bot) {
		b.version = version
	}
}

func isSysCommand(cmd string) bool {
	return cmd == "start" || cmd == "help" || cmd == "version"
}

func sysCommand(bw *Bot, u tgbotapi.Update) {
	basicSend := func(s string) {
		_, err := bw.Bot().Send(tgbotapi.NewMessage(u.Message.Chat.ID, s))
		if err != nil {
			log.Println(err)
		}
	}
	switch u.Message.Command() {
	case "start":
		var commands []string
		for _, cmd := range bw.TGCommands() {
			commands = append(commands, "/"+cmd.Command)
		}
		basicSend(fmt.Sprintf("Here are the available commands:\n%s", strings.Join(commands, "\n")))
	case "help":
		if bw.help != "" {
			basicSend(bw.help)
		} else {
			basicSend("the bot does not have help")
		}
	case "version":
		basicSend(bw.version)
	}
}

func setUpBot(bot *tgbotapi.BotAPI, configs ...BotWrapperConfig) *Bot {
	bw := &Bot{
		bot:               bot,
		commands:          make(map[string]Command),
		commandMatchEvent: make(map[string]*EventHandle[tgbotapi.Update]),
	}
	for i := range configs {
		configs[i](bw)
	}
	return bw
}

func NewMessageBot(token string, configs ...BotWrapperConfig) (*Bot, error) {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %v", err)
	}
	return setUpBot(bot, configs...), nil
}
