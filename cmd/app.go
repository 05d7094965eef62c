package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/api"
	"github.com/iksnae/festive-connect/internal/chat"
	"github.com/iksnae/festive-connect/internal/events"
	"github.com/spf13/cobra"
)

// activeSessionKey remembers the last active session between runs. It sits
// outside the session key prefix so clearing the cache leaves it alone.
const activeSessionKey = "festive_active_session"

var errAborted = errors.New("aborted")

// app holds the clients one command invocation works with
type app struct {
	cfg    *internal.Config
	client *api.Client
	store  internal.KVStore
	cache  *chat.SessionCache
	events *events.Service
}

// loadConfig reads the layered config and applies command-line overrides
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if cachePath != "" {
		cfg.CachePath = cachePath
	}
	if agentName != "" {
		cfg.AgentName = agentName
	}
	if userID != "" {
		cfg.UserID = userID
	}
	return cfg, nil
}

func newClient(cfg *internal.Config) *api.Client {
	opts := []api.Option{api.WithTimeout(cfg.Timeout)}
	for k, v := range cfg.Headers {
		opts = append(opts, api.WithHeader(k, v))
	}
	return api.NewClient(cfg.BaseURL, opts...)
}

// newApp wires config, the backend client and the local cache. The caller
// must Close it.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := internal.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	internal.LogDebug("Using cache %s and backend %s", cfg.CachePath, cfg.BaseURL)

	client := newClient(cfg)
	return &app{
		cfg:    cfg,
		client: client,
		store:  store,
		cache:  chat.NewSessionCache(store, cfg.KeyPrefix),
		events: events.NewService(client),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) synchronizer(r chat.Renderer) *chat.Synchronizer {
	return chat.NewSynchronizer(a.client, a.cache,
		chat.WithAgent(a.cfg.AgentName),
		chat.WithUser(a.cfg.UserID),
		chat.WithRenderer(r),
	)
}

// lastActive returns the session that was active when the previous
// command finished, or "".
func (a *app) lastActive() string {
	v, err := a.store.Get(activeSessionKey)
	if err != nil {
		return ""
	}
	return string(v)
}

func (a *app) rememberActive(id string) {
	var err error
	if id == "" {
		err = a.store.Delete(activeSessionKey)
	} else {
		err = a.store.Set(activeSessionKey, []byte(id))
	}
	if err != nil {
		internal.LogWarn("Failed to remember active session: %v", err)
	}
}

// confirm asks a yes/no question on the command's input. Anything but an
// explicit yes is a refusal and returns errAborted.
func confirm(cmd *cobra.Command, question string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

// userMessage turns an error into the short message shown to the user.
// The full error goes to the debug log.
func userMessage(err error) string {
	var (
		cfgErr     *internal.ConfigError
		storageErr *internal.StorageError
		parseErr   *internal.ParseError
		exportErr  *internal.ExportError
		transport  *api.TransportError
		apiErr     *api.APIError
	)
	switch {
	case errors.Is(err, errAborted):
		return "Aborted."
	case errors.Is(err, context.Canceled):
		return "Interrupted."
	case errors.Is(err, chat.ErrNoActiveSession):
		return "No active session. Start one with 'festive sessions new'."
	case errors.Is(err, events.ErrMissingTitle),
		errors.Is(err, events.ErrMissingDate),
		errors.Is(err, events.ErrMissingLocation):
		return err.Error()
	case errors.As(err, &cfgErr):
		return "The configuration is invalid. Check your config file and FESTIVE_* settings."
	case errors.As(err, &transport):
		return "Could not reach the FestiveConnect backend. Is it running?"
	case api.IsNotFound(err):
		return "Not found."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("The backend could not complete the request (%s).", apiErr.Message)
	case errors.As(err, &parseErr):
		return "The backend sent a response that could not be read."
	case errors.As(err, &storageErr):
		return "The local session cache could not be used."
	case errors.As(err, &exportErr):
		return "The export could not be written."
	}
	return err.Error()
}
