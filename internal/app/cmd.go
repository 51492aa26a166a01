package app

// Command はfriendlineバイナリの起動モードを表す。
type Command string

const (
	// CommandServe はREST API、WebSocket、通知配信をまとめて起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの掃除だけを行う。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマを最新版まで適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のserveプロセスの /health を叩く。
	// distrolessイメージにはcurlが無いためバイナリ自身で行う。
	CommandHealthcheck Command = "healthcheck"
)

var commandDescriptions = map[Command]string{
	CommandServe:       "API server with realtime notifications",
	CommandWorker:      "periodic session cleanup",
	CommandMigrate:     "apply database migrations",
	CommandHealthcheck: "probe /health of a running server",
}

// Description はログ出力用のサブコマンド説明を返す。
func (c Command) Description() string {
	return commandDescriptions[c]
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数なしや未知の値はserveとして扱い、2番目以降の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	cmd := Command(args[0])
	if _, ok := commandDescriptions[cmd]; !ok {
		return CommandServe
	}
	return cmd
}
