package config

// EnvPrefix is prepended to every environment override, e.g.
// CHATDL_OUTPUT_WITH_ASSETS=true.
const EnvPrefix = "CHATDL"

const (
	DefaultBaseURL        = "https://www.youtube.com"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultPattern        = "[[DATE]][[STREAM_ID]] [TITLE]"
)

// ValidLevels lists the accepted logging.level values
var ValidLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}
