package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	bot "github.com/meinside/telegram-bot-go"
	"github.com/meinside/version-go"
	"gorm.io/gorm"

	"github.com/igorrodygin/museum-quiz-bot/cfg"
	"github.com/igorrodygin/museum-quiz-bot/consts"
)

const (
	requestTimeoutSeconds          = 60
	ignorableRequestTimeoutSeconds = 5
)

// chatState remembers the last retry notice sent to a user, so it can be
// deleted once a question goes through.
type chatState struct {
	UserID        int64
	RetryNoticeID int64
}

type statePool struct {
	States map[int64]chatState
	sync.Mutex
}

var pool statePool

// keyboards
var allKeyboards = [][]bot.KeyboardButton{
	bot.NewKeyboardButtons(consts.CommandPlay, consts.CommandStats, consts.CommandTop),
	bot.NewKeyboardButtons(consts.CommandHelp, consts.CommandStatus),
}

var (
	_stdout = log.New(os.Stdout, "", log.LstdFlags)
	_stderr = log.New(os.Stderr, "", log.LstdFlags)
)

// check if given username is one of the admins
func isAdminUser(config cfg.Config, username *string) bool {
	if username == nil {
		return false
	}
	return slices.Contains(config.AdminUsernames, *username)
}

// for showing help message
func getHelp() string {
	return fmt.Sprintf(`
поддерживаются команды:

*викторина*

%s : показать картину и угадать музей
%s : ваша статистика
%s : топ игроков за неделю

*прочее*

%s : состояние бота
%s : это сообщение
`,
		consts.CommandPlay,
		consts.CommandStats,
		consts.CommandTop,
		consts.CommandStatus,
		consts.CommandHelp,
	)
}

// get recent logs
func getLogs(db *Database) string {
	var lines []string

	logs := db.GetLogs(consts.NumRecentLogs)

	if len(logs) <= 0 {
		return consts.MessageNoLogs
	}

	for _, log := range logs {
		lines = append(lines, fmt.Sprintf("%s %s: %s", log.CreatedAt.Format("2006-01-02 15:04:05"), log.Type, log.Message))
	}
	return strings.Join(lines, "\n")
}

// for showing current status of this bot
func getStatus(launchedAt time.Time) string {
	return fmt.Sprintf("версия: %s\nаптайм: %s\nпамять: %s",
		version.Minimum(),
		uptimeSince(launchedAt),
		memoryUsage(),
	)
}

// build the personal stats message of a user
func statsMessage(db *Database, userID int64) string {
	stats, err := db.GetStats(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logError(db, "failed to read stats: %s", err)
		}
		return consts.MessageNoStats
	}

	return fmt.Sprintf(
		"Твоя статистика:\nПравильных ответов: %d/%d (%.1f%%)\nСерия подряд: %d",
		stats.Correct,
		stats.Total,
		accuracy(stats.Correct, stats.Total),
		stats.Streak,
	)
}

// build the weekly leaderboard message
func topMessage(db *Database) string {
	since := time.Now().Add(-consts.WeekWindowDays * 24 * time.Hour)

	entries, err := db.Leaderboard(since, consts.LeaderboardTopLimit)
	if err != nil {
		logError(db, "failed to read leaderboard: %s", err)

		return consts.MessageEmptyTop
	}
	if len(entries) <= 0 {
		return consts.MessageEmptyTop
	}

	lines := []string{"🏆 Топ за 7 дней:"}
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf(
			"%d. %s: %d/%d (%.1f%%)",
			i+1,
			displayName(entry.Username, entry.FirstName, entry.LastName, entry.UserID),
			entry.Correct,
			entry.Total,
			accuracy(entry.Correct, entry.Total),
		))
	}
	return strings.Join(lines, "\n")
}

// register a user, keeping their names fresh
func registerUser(db *Database, from *bot.User) {
	var username, lastName string
	if from.Username != nil {
		username = *from.Username
	}
	if from.LastName != nil {
		lastName = *from.LastName
	}

	if err := db.EnsureUser(from.ID, username, from.FirstName, lastName); err != nil {
		logError(db, "failed to register user %d: %s", from.ID, err)
	}
}

// process incoming update from Telegram
func processUpdate(
	ctx context.Context,
	b *bot.Bot,
	config cfg.Config,
	paintings []Painting,
	db *Database,
	launchedAt time.Time,
	update bot.Update,
) bool {
	from := update.GetFrom()
	if from == nil {
		logError(db, "update has no 'from' value")

		return false
	}
	registerUser(db, from)

	chatID := update.Message.Chat.ID

	// save chat id
	db.SaveChat(chatID, from.ID)

	// text from message
	var txt string
	if update.Message.HasText() {
		txt = *update.Message.Text
	}

	var message string
	options := bot.OptionsSendMessage{}.
		SetReplyMarkup(defaultReplyMarkup(true))

	switch {
	case strings.HasPrefix(txt, consts.CommandStart):
		message = consts.MessageGreeting
	case strings.HasPrefix(txt, consts.CommandPlay):
		return playRound(ctx, b, config, paintings, db, chatID, from.ID)
	case strings.HasPrefix(txt, consts.CommandStats):
		message = statsMessage(db, from.ID)
	case strings.HasPrefix(txt, consts.CommandTop):
		message = topMessage(db)
	case strings.HasPrefix(txt, consts.CommandHelp):
		message = getHelp()
	case strings.HasPrefix(txt, consts.CommandStatus):
		message = getStatus(launchedAt)
	case strings.HasPrefix(txt, consts.CommandLogs) && isAdminUser(config, from.Username):
		message = getLogs(db)
	// fallback
	default:
		cmd := removeMarkdownChars(txt, "")
		if len(cmd) > 0 {
			message = fmt.Sprintf("*%s*: %s", cmd, consts.MessageUnknownCommand)
		} else {
			message = consts.MessageUnknownCommand
		}
	}

	return sendMessage(ctx, b, db, chatID, message, options)
}

// send a message, preferring markdown formatting when the text allows it
func sendMessage(
	ctx context.Context,
	b *bot.Bot,
	db *Database,
	chatID int64,
	message string,
	options bot.OptionsSendMessage,
) bool {
	if options == nil {
		options = bot.OptionsSendMessage{}.
			SetReplyMarkup(defaultReplyMarkup(true))
	}
	if checkMarkdownValidity(message) {
		options.SetParseMode(bot.ParseModeMarkdown)
	}

	ctxSend, cancelSend := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
	defer cancelSend()
	if sent, err := b.SendMessage(
		ctxSend,
		chatID,
		message,
		options,
	); sent.OK {
		return true
	} else {
		var errMessageEmpty bot.ErrMessageEmpty
		var errMessageTooLong bot.ErrMessageTooLong
		var errNoChatID bot.ErrChatNotFound
		var errTooManyRequests bot.ErrTooManyRequests
		if errors.As(err, &errMessageEmpty) {
			logError(db, "message is empty")
		} else if errors.As(err, &errMessageTooLong) {
			logError(db, "message is too long: %d bytes", len(message))
		} else if errors.As(err, &errNoChatID) {
			logError(db, "no such chat id: %d", chatID)
		} else if errors.As(err, &errTooManyRequests) {
			logError(db, "too many requests")
		} else if sent.Description != nil {
			logError(db, "failed to send message: %s", *sent.Description)
		} else {
			logError(db, "failed to send message: %s", err)
		}
	}

	return false
}

// run one quiz round for a user: check the daily quota, draw a painting,
// and send it with the answer buttons. When the photo cannot be sent,
// retries with the next painting; every drawn question counts against
// the quota either way.
func playRound(
	ctx context.Context,
	b *bot.Bot,
	config cfg.Config,
	paintings []Painting,
	db *Database,
	chatID, userID int64,
) bool {
	for attempt := 0; attempt < consts.MaxRoundAttempts; attempt++ {
		now := time.Now()

		used, err := db.QuotaUsedToday(userID, now)
		if err != nil {
			logError(db, "failed to read daily quota: %s", err)

			return false
		}
		if used >= config.DailyLimit {
			sendMessage(ctx, b, db, chatID, statsMessage(db, userID), nil)

			return sendMessage(ctx, b, db, chatID, consts.MessageQuotaExhausted, nil)
		}

		index, err := db.NextPaintingIndex(userID, len(paintings))
		if err != nil {
			logError(db, "failed to draw a painting: %s", err)

			return false
		}
		painting := paintings[index]

		if err := db.IncQuotaUsedToday(userID, now); err != nil {
			logError(db, "failed to update daily quota: %s", err)
		}

		if err := db.SaveSession(userID, index, painting, now); err != nil {
			logError(db, "failed to save session: %s", err)

			return false
		}

		if sendQuestion(ctx, b, db, chatID, painting) {
			deleteRetryNotice(ctx, b, chatID, userID)

			return true
		}

		sendRetryNotice(ctx, b, chatID, userID)
	}

	return false
}

// send a painting with its question caption and the answer buttons
func sendQuestion(
	ctx context.Context,
	b *bot.Bot,
	db *Database,
	chatID int64,
	painting Painting,
) bool {
	options := bot.OptionsSendPhoto{}.
		SetCaption(questionCaption(painting)).
		SetParseMode(bot.ParseModeHTML).
		SetReplyMarkup(answerInlineKeyboardMarkup())

	ctxSend, cancelSend := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
	defer cancelSend()
	if sent, err := b.SendPhoto(
		ctxSend,
		chatID,
		bot.NewInputFileFromURL(painting.ImageURL),
		options,
	); sent.OK {
		return true
	} else if sent.Description != nil {
		logError(db, "failed to send photo '%s': %s", painting.ImageURL, *sent.Description)
	} else {
		logError(db, "failed to send photo '%s': %s", painting.ImageURL, err)
	}

	return false
}

// tell the user the photo failed, remembering the notice for deletion
// after the next question that goes through
func sendRetryNotice(
	ctx context.Context,
	b *bot.Bot,
	chatID, userID int64,
) {
	ctxSend, cancelSend := context.WithTimeout(ctx, ignorableRequestTimeoutSeconds*time.Second)
	defer cancelSend()
	if sent, _ := b.SendMessage(ctxSend, chatID, consts.MessagePhotoFailed, bot.OptionsSendMessage{}); sent.OK {
		pool.Lock()
		pool.States[userID] = chatState{
			UserID:        userID,
			RetryNoticeID: sent.Result.MessageID,
		}
		pool.Unlock()
	}
}

// delete the previously remembered retry notice of a user, if any
func deleteRetryNotice(
	ctx context.Context,
	b *bot.Bot,
	chatID, userID int64,
) {
	pool.Lock()
	state, exists := pool.States[userID]
	delete(pool.States, userID)
	pool.Unlock()

	if !exists || state.RetryNoticeID == 0 {
		return
	}

	ctxDelete, cancelDelete := context.WithTimeout(ctx, ignorableRequestTimeoutSeconds*time.Second)
	defer cancelDelete()
	_, _ = b.DeleteMessage(ctxDelete, chatID, state.RetryNoticeID)
}

// process incoming callback query
func processCallbackQuery(
	ctx context.Context,
	b *bot.Bot,
	config cfg.Config,
	paintings []Painting,
	db *Database,
	update bot.Update,
) (result bool) {
	query := *update.CallbackQuery
	txt := *query.Data

	from := update.GetFrom()
	if from == nil {
		logError(db, "callback query has no 'from' value")

		return false
	}
	registerUser(db, from)

	chatID := query.Message.Chat.ID

	// answer callback query first; grading and the next photo may take a while
	ctxAnswer, cancelAnswer := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
	defer cancelAnswer()
	if apiResult, _ := b.AnswerCallbackQuery(ctxAnswer, query.ID, bot.OptionsAnswerCallbackQuery{}); !apiResult.OK {
		logError(db, "failed to answer callback query: %+v", query)
	}

	switch {
	case txt == consts.CallbackNext:
		return playRound(ctx, b, config, paintings, db, chatID, from.ID)
	case strings.HasPrefix(txt, consts.CallbackAnswerPrefix):
		answer := strings.TrimPrefix(txt, consts.CallbackAnswerPrefix)
		return gradeAnswer(ctx, b, config, paintings, db, query, chatID, from.ID, answer)
	default:
		logError(db, "unprocessable callback query: %s", txt)

		return false
	}
}

// grade the answer of a user against their pending question, edit the
// photo caption with the verdict, and serve the next question right away
func gradeAnswer(
	ctx context.Context,
	b *bot.Bot,
	config cfg.Config,
	paintings []Painting,
	db *Database,
	query bot.CallbackQuery,
	chatID, userID int64,
	answer string,
) bool {
	session, err := db.GetSession(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logError(db, "failed to read session: %s", err)
		}
		editCaption(ctx, b, db, chatID, query.Message.MessageID, consts.MessageSessionNotFound, false)

		return playRound(ctx, b, config, paintings, db, chatID, userID)
	}

	correct := answer == session.Museum
	if err := db.RecordAnswer(userID, correct, time.Now()); err != nil {
		logError(db, "failed to record answer: %s", err)
	}

	editCaption(ctx, b, db, chatID, query.Message.MessageID, verdictCaption(session, correct), true)

	return playRound(ctx, b, config, paintings, db, chatID, userID)
}

// edit the caption of a quiz photo, dropping its inline keyboard
func editCaption(
	ctx context.Context,
	b *bot.Bot,
	db *Database,
	chatID, messageID int64,
	caption string,
	asHTML bool,
) {
	options := bot.OptionsEditMessageCaption{}.
		SetIDs(chatID, messageID).
		SetCaption(caption)
	if asHTML {
		options.SetParseMode(bot.ParseModeHTML)
	}

	ctxEdit, cancelEdit := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
	defer cancelEdit()
	if apiResult, _ := b.EditMessageCaption(ctxEdit, options); !apiResult.OK {
		if apiResult.Description != nil {
			logError(db, "failed to edit message caption: %s", *apiResult.Description)
		} else {
			logError(db, "failed to edit message caption")
		}
	}
}

// broadcast a messge to all saved chats
func broadcast(
	ctx context.Context,
	client *bot.Bot,
	config cfg.Config,
	db *Database,
	message string,
) {
	for _, chat := range db.GetChats() {
		options := bot.OptionsSendMessage{}.
			SetReplyMarkup(defaultReplyMarkup(true))
		if checkMarkdownValidity(message) {
			options.SetParseMode(bot.ParseModeMarkdown)
		}
		ctxSend, cancelSend := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
		sent, err := client.SendMessage(
			ctxSend,
			chat.ChatID,
			message,
			options,
		)
		cancelSend()
		if sent.OK {
			continue
		}

		var errMessageEmpty bot.ErrMessageEmpty
		var errMessageTooLong bot.ErrMessageTooLong
		var errNoChatID bot.ErrChatNotFound
		var errTooManyRequests bot.ErrTooManyRequests
		if errors.As(err, &errMessageEmpty) {
			logError(db, "broadcast message is empty")
		} else if errors.As(err, &errMessageTooLong) {
			logError(db, "broadcast message is too long: %d bytes", len(message))
		} else if errors.As(err, &errNoChatID) {
			// the chat is gone, stop broadcasting to it
			logError(db, "no such chat id for broadcast: %d (forgetting it)", chat.ChatID)
			db.DeleteChat(chat.ChatID)
		} else if errors.As(err, &errTooManyRequests) {
			logError(db, "too many requests for broadcast")
		} else if sent.Description != nil {
			logError(db, "failed to broadcast to chat id %d: %s", chat.ChatID, *sent.Description)
		} else {
			logError(db, "failed to broadcast to chat id %d: %s", chat.ChatID, err)
		}
	}
}

// for processing incoming request through HTTP
func httpHandlerForCLI(config cfg.Config, queue chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		message := strings.TrimSpace(r.FormValue(consts.ParamMessage))

		if len(message) > 0 {
			if config.IsVerbose {
				_stdout.Printf("received message from CLI: %s", message)
			}

			queue <- message
		}
	}
}

// check if given string is valid with markdown characters (true == valid)
func checkMarkdownValidity(txt string) bool {
	if strings.Count(txt, "_")%2 == 0 &&
		strings.Count(txt, "*")%2 == 0 &&
		strings.Count(txt, "`")%2 == 0 &&
		strings.Count(txt, "```")%2 == 0 {
		return true
	}

	return false
}

// default reply markup for messages
func defaultReplyMarkup(resize bool) bot.ReplyKeyboardMarkup {
	return bot.NewReplyKeyboardMarkup(allKeyboards).
		SetResizeKeyboard(resize)
}

// inline keyboard markup with the two museum answers in one row
func answerInlineKeyboardMarkup() bot.InlineKeyboardMarkup {
	return bot.NewInlineKeyboardMarkup([][]bot.InlineKeyboardButton{
		{
			bot.NewInlineKeyboardButton("1) " + consts.MuseumRussian).
				SetCallbackData(consts.CallbackAnswerPrefix + consts.MuseumRussian),
			bot.NewInlineKeyboardButton("2) " + consts.MuseumTretyakov).
				SetCallbackData(consts.CallbackAnswerPrefix + consts.MuseumTretyakov),
		},
	})
}

// run bot
func runBot(
	ctx context.Context,
	config cfg.Config,
	paintings []Painting,
	launchedAt time.Time,
) {
	// initialize variables
	pool = statePool{
		States: make(map[int64]chatState),
	}
	queue := make(chan string, consts.QueueSize)

	// open database
	db, err := OpenDB(config.DBPath)
	if err != nil {
		_stderr.Fatalf("failed to open database: %s", err)
	}

	db.Log("starting server...")

	// catch SIGINT and SIGTERM and terminate gracefully
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		db.Log("stopping server...")
		os.Exit(1)
	}()

	client := bot.NewClient(config.APIToken)
	client.Verbose = config.IsVerbose

	// get info about this bot
	ctxBotInfo, cancelBotInfo := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
	defer cancelBotInfo()
	if me, _ := client.GetMe(ctxBotInfo); me.OK {
		_stdout.Printf("launching bot: @%s (%s)", *me.Result.Username, me.Result.FirstName)

		// delete webhook (getting updates will not work when wehbook is set up)
		ctxDeleteWebhook, cancelDeleteWebhook := context.WithTimeout(ctx, requestTimeoutSeconds*time.Second)
		defer cancelDeleteWebhook()
		if unhooked, _ := client.DeleteWebhook(ctxDeleteWebhook, false); unhooked.OK {
			// wait for CLI message channel
			go func() {
				// broadcast messages from CLI
				for message := range queue {
					broadcast(ctx, client, config, db, message)
				}
			}()

			// start web server for CLI
			go func(config cfg.Config) {
				_stdout.Printf("starting local web server for CLI on port: %d", config.CLIPort)

				http.HandleFunc(consts.HTTPBroadcastPath, httpHandlerForCLI(config, queue))
				if err := http.ListenAndServe(fmt.Sprintf(":%d", config.CLIPort), nil); err != nil {
					panic(err)
				}
			}(config)

			// prune old logs once a day
			go pruneLogsPeriodically(db)

			// set update handlers
			client.SetMessageHandler(func(b *bot.Bot, update bot.Update, message bot.Message, edited bool) {
				// 'is typing...'
				ctxAction, cancelAction := context.WithTimeout(ctx, ignorableRequestTimeoutSeconds*time.Second)
				defer cancelAction()
				_, _ = b.SendChatAction(ctxAction, message.Chat.ID, bot.ChatActionTyping, nil)

				// process message
				processUpdate(ctx, b, config, paintings, db, launchedAt, update)
			})
			client.SetCallbackQueryHandler(func(b *bot.Bot, update bot.Update, callbackQuery bot.CallbackQuery) {
				// 'is typing...'
				ctxAction, cancelAction := context.WithTimeout(ctx, ignorableRequestTimeoutSeconds*time.Second)
				defer cancelAction()
				_, _ = b.SendChatAction(ctxAction, callbackQuery.Message.Chat.ID, bot.ChatActionTyping, nil)

				// process callback query
				processCallbackQuery(ctx, b, config, paintings, db, update)
			})

			// wait for new updates
			client.StartPollingUpdates(0, config.MonitorInterval, func(b *bot.Bot, update bot.Update, err error) {
				if err != nil {
					logError(db, "error while receiving update: %s", err)
				}
			})
		} else {
			panic("Failed to delete webhook")
		}
	} else {
		panic("Failed to get info of the bot")
	}
}

// delete old log rows once a day
func pruneLogsPeriodically(db *Database) {
	for {
		olderThan := time.Now().Add(-consts.LogRetentionDays * 24 * time.Hour)
		if deleted, err := db.PruneLogs(olderThan); err != nil {
			_stderr.Printf("failed to prune old logs: %s", err)
		} else if deleted > 0 {
			_stdout.Printf("pruned %d old log(s)", deleted)
		}

		time.Sleep(24 * time.Hour)
	}
}

// log error to stderr and DB
func logError(db *Database, format string, a ...any) {
	_stderr.Printf(format, a...)

	db.LogError(fmt.Sprintf(format, a...))
}
