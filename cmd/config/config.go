package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tangle/pkg/cache"
	"tangle/pkg/gateway"
	"tangle/pkg/tree"
)

var cfgFile string

// App bundles the wired-up components the commands share.
type App struct {
	Log   *logrus.Logger
	GW    gateway.Gateway
	State *cache.Store
	Store *tree.Store

	UserID           string
	Editor           string
	AutosaveDebounce time.Duration
	AnnotateDebounce time.Duration
}

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "tangle")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TANGLE")

	// Set defaults
	viper.SetDefault("api_url", "http://localhost:8787")
	viper.SetDefault("user_id", "local")
	viper.SetDefault("data_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "tangle"))
	viper.SetDefault("editor", os.Getenv("EDITOR"))
	viper.SetDefault("notes_ttl", cache.DefaultNotesTTL)
	viper.SetDefault("autosave_debounce", 3*time.Second)
	viper.SetDefault("annotate_debounce", 500*time.Millisecond)

	// A missing config file is fine, the defaults apply.
	_ = viper.ReadInConfig()
}

// InitApp wires the gateway client, state cache, and tree store from the
// loaded configuration. The state cache is advisory: failure to open it is
// logged and the app continues without it.
func InitApp() (*App, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel) // Keep it quiet unless there are issues.
	if viper.GetBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	apiURL := viper.GetString("api_url")
	if apiURL == "" {
		return nil, fmt.Errorf("api_url is not configured")
	}

	var opts []gateway.Option
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, gateway.WithToken(token))
	}
	gw := gateway.NewClient(apiURL, opts...)

	userID := viper.GetString("user_id")

	state, err := cache.New(viper.GetString("data_dir"),
		cache.WithNotesTTL(viper.GetDuration("notes_ttl")))
	if err != nil {
		log.WithError(err).Warn("could not open state cache, continuing without it")
		state = nil
	}

	storeOpts := []tree.Option{tree.WithLogger(log)}
	if state != nil {
		storeOpts = append(storeOpts, tree.WithStateCache(state, userID))
	}

	return &App{
		Log:              log,
		GW:               gw,
		State:            state,
		Store:            tree.NewStore(gw, storeOpts...),
		UserID:           userID,
		Editor:           viper.GetString("editor"),
		AutosaveDebounce: viper.GetDuration("autosave_debounce"),
		AnnotateDebounce: viper.GetDuration("annotate_debounce"),
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.State != nil {
		a.State.Close()
	}
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/tangle/config.yaml)")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))
}
