package consts

// constants
const (
	// for CLI
	HTTPBroadcastPath    = "/broadcast"
	DefaultCLIPortNumber = 59912
	ParamMessage         = "m"
	QueueSize            = 3

	// for the paintings dataset
	DefaultDataPath = "data/paintings.json"

	// for the local database
	DefaultDBPath = "bot.sqlite3"

	// for polling
	DefaultMonitorIntervalSeconds = 3

	// quiz rules
	DefaultDailyLimit   = 15
	WeekWindowDays      = 7
	LeaderboardTopLimit = 10
	MaxRoundAttempts    = 3

	// museums; answer values are compared verbatim with the dataset
	MuseumRussian   = "Русский музей"
	MuseumTretyakov = "Третьяковская галерея"

	// commands
	CommandStart  = "/start"
	CommandPlay   = "/play"
	CommandStats  = "/stats"
	CommandTop    = "/top"
	CommandHelp   = "/help"
	CommandStatus = "/status"
	CommandLogs   = "/logs"

	// callback query data
	CallbackAnswerPrefix = "ans:"
	CallbackNext         = "next"

	// messages
	MessageGreeting = "Привет! Это викторина «Третьяковка vs Русский музей».\n\n" +
		"Нажми /play чтобы начать: я покажу картину, а ты угадай, из какого музея она.\n" +
		"Команды: /play, /stats, /top"
	MessageQuestion        = "Из какого музея эта работа?"
	MessageCorrect         = "✅ Правильно!"
	MessageQuotaExhausted  = "На сегодня всё. Приходите завтра!"
	MessagePhotoFailed     = "Не удалось показать картину, попробуйте ещё раз"
	MessageSessionNotFound = "Сессия не найдена. Нажмите /play"
	MessageNoStats         = "Статистика пока пустая. Нажми /play, чтобы начать."
	MessageEmptyTop        = "Пока нет результатов за последние 7 дней."
	MessageUnknownCommand  = "Неизвестная команда."
	MessageNoLogs          = "No saved logs."

	// number of recent logs
	NumRecentLogs = 20

	// log retention for the daily cleanup
	LogRetentionDays = 30
)
