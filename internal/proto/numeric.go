package proto

// Reply and error codes understood by clients.
const (
	RplWelcome  = 1
	RplYourHost = 2
	RplCreated  = 3
	RplMyInfo   = 4

	RplUModeIs = 221

	RplAway      = 301
	RplUnaway    = 305
	RplNowAway   = 306
	RplWhoisUser = 311
	RplWhoisSrv  = 312
	RplWhoisIdle = 317
	RplEndWhois  = 318
	RplWhoisChan = 319

	RplListStart    = 321
	RplList         = 322
	RplListEnd      = 323
	RplChannelModes = 324
	RplCreationTime = 329
	RplNoTopic      = 331
	RplTopic        = 332
	RplVersion      = 351
	RplNamReply     = 353
	RplEndOfNames   = 366

	ErrNoSuchNick       = 401
	ErrNoSuchChannel    = 403
	ErrNoNicknameGiven  = 431
	ErrErroneusNickname = 432
	ErrNicknameInUse    = 433
	ErrNotRegistered    = 451
	ErrNeedMoreParams   = 461
	ErrMustAuthenticate = 484
	ErrUsersDontMatch   = 502
)

// Verbs of the inbound protocol.
const (
	CmdNick     = "NICK"
	CmdUser     = "USER"
	CmdJoin     = "JOIN"
	CmdPart     = "PART"
	CmdPrivmsg  = "PRIVMSG"
	CmdNotice   = "NOTICE"
	CmdTopic    = "TOPIC"
	CmdList     = "LIST"
	CmdNames    = "NAMES"
	CmdMode     = "MODE"
	CmdPing     = "PING"
	CmdPong     = "PONG"
	CmdQuit     = "QUIT"
	CmdAuth     = "AUTH"
	CmdRegister = "REGISTER"
	CmdWhois    = "WHOIS"
	CmdVersion  = "VERSION"
	CmdAway     = "AWAY"
)

// TokenNoticePrefix marks the NOTICE that carries a session resume token.
const TokenNoticePrefix = "TOKEN "
