package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/notify"
)

func validConfig() *config.Config {
	var c config.Config
	c.LoadDefaults()
	return &c
}

func TestNewPublisher_LogFallback(t *testing.T) {
	p, err := newPublisher(validConfig(), logging.Nop{})
	require.NoError(t, err)
	assert.IsType(t, &notify.LogPublisher{}, p)
}

func TestNewPublisher_AMQPDialError(t *testing.T) {
	c := validConfig()
	c.AMQPURL = "not-a-url"

	_, err := newPublisher(c, logging.Nop{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amqp init error")
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := validConfig()
	c.SecretKey = ""

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewApp_DBErrors(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })

	t.Run("open", func(t *testing.T) {
		openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }

		_, err := NewApp(context.Background(), validConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db init error")
	})

	t.Run("ping", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(errors.New("unreachable"))
		openDB = func(string) (*sql.DB, error) { return db, nil }

		_, err = NewApp(context.Background(), validConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db ping error")
	})
}
