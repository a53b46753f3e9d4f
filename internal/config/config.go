package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Wiki connection
	WikiAPI   string
	UserAgent string

	// Bot credentials
	BotUser     string
	BotPassword string

	// IGDB (Twitch) credentials
	IGDBClientID     string
	IGDBClientSecret string

	// Run scope
	Category string
}

// Load reads the environment, after probing for a .env file in the working
// directory or one of its parents. An existing environment variable always
// wins over a .env entry.
func Load() Config {
	loadDotEnv()

	return Config{
		WikiAPI:   envOr("WIKI_API", "https://archipelago.miraheze.org/w/api.php"),
		UserAgent: envOr("WIKI_USER_AGENT", "APWikiBot/1.0 (Silasary)"),

		BotUser:     os.Getenv("botuser"),
		BotPassword: os.Getenv("botpass"),

		IGDBClientID:     os.Getenv("igdb_client_id"),
		IGDBClientSecret: os.Getenv("igdb_client_secret"),

		Category: envOr("WIKI_CATEGORY", "Category:Games"),
	}
}

func (c Config) Validate() error {
	if c.BotUser == "" {
		return fmt.Errorf("botuser is required")
	}
	if c.BotPassword == "" {
		return fmt.Errorf("botpass is required")
	}
	if c.IGDBClientID == "" {
		return fmt.Errorf("igdb_client_id is required")
	}
	if c.IGDBClientSecret == "" {
		return fmt.Errorf("igdb_client_secret is required")
	}
	return nil
}

// loadDotEnv walks from the working directory toward the filesystem root
// looking for a .env file, loading the first one found.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 8; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// RunFlags are the per-run feature toggles read from the bot's own user
// page, so a wiki admin can steer or stop the bot without a deploy.
type RunFlags struct {
	Active                  bool
	RearrangeTemplates      bool
	UploadBoxArt            bool
	PromptForIGDBOnTalkPage bool
	CheckSupportedNavbox    bool
	CheckFranchiseNavbox    bool
}

// tableEntryRe matches one "| Key || Value" row of the config table.
var tableEntryRe = regexp.MustCompile(`(?m)^\| ([A-Za-z]+) \|\| ([A-Za-z]+)`)

// ParseRunFlags extracts the feature toggles from the config page's
// wikitext table. Unknown or malformed values read as false. The raw
// key/value pairs are returned alongside for logging.
func ParseRunFlags(content string) (RunFlags, map[string]string) {
	raw := map[string]string{}
	for _, m := range tableEntryRe.FindAllStringSubmatch(content, -1) {
		raw[m[1]] = m[2]
	}
	flag := func(key string) bool {
		v, err := strconv.ParseBool(raw[key])
		return err == nil && v
	}
	return RunFlags{
		Active:                  flag("Active"),
		RearrangeTemplates:      flag("RearrangeTemplates"),
		UploadBoxArt:            flag("UploadBoxArt"),
		PromptForIGDBOnTalkPage: flag("PromptForIGDBOnTalkPage"),
		CheckSupportedNavbox:    flag("CheckSupportedNavbox"),
		CheckFranchiseNavbox:    flag("CheckFranchiseNavbox"),
	}, raw
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
