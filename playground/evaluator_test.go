package playground_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/mongols/playground"
)

func TestMongosh_Args(t *testing.T) {
	t.Parallel()

	args := playground.NewMongosh("", nil).Args(playground.Request{
		CodeToEvaluate:   "db.test.find()",
		ConnectionString: testConnection,
	})

	require.Len(t, args, 5)
	assert.Equal(t, []string{"--nodb", "--quiet", "--json=relaxed", "--eval"}, args[:4])
	assert.True(t, strings.HasPrefix(args[4], "db = connect(process.env."+playground.ConnectionStringEnv+");"))
	assert.True(t, strings.HasSuffix(args[4], "\ndb.test.find()"))

	for _, arg := range args {
		assert.NotContains(t, arg, testConnection, "connection string must stay off the command line")
	}
}

func TestMongosh_Env(t *testing.T) {
	t.Parallel()

	env := playground.NewMongosh("", nil).Env(playground.Request{ConnectionString: testConnection})
	assert.Equal(t, []string{playground.ConnectionStringEnv + "=" + testConnection}, env)
}

func TestMongosh_NoConnection(t *testing.T) {
	t.Parallel()

	_, err := playground.NewMongosh("", nil).Evaluate(context.Background(), playground.Request{CodeToEvaluate: "1"}, nil)
	require.ErrorIs(t, err, playground.ErrNoConnection)
}

func TestMongosh_Evaluate(t *testing.T) {
	t.Setenv(fakeMongoshEnv, "1")

	m := playground.NewMongosh(os.Args[0], nil)

	t.Run("print and value", func(t *testing.T) {
		var prints []string

		result, err := m.Evaluate(context.Background(), request("print"), func(s string) {
			prints = append(prints, s)
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"hello", "two\nlines"}, prints)
		assert.Equal(t, playground.LanguageJSON, result.Language)
		assert.JSONEq(t, `{"n": 1}`, string(result.Content))
	})

	t.Run("plaintext value", func(t *testing.T) {
		result, err := m.Evaluate(context.Background(), request("42"), func(string) {})
		require.NoError(t, err)

		assert.Equal(t, playground.LanguagePlaintext, result.Language)
		assert.Equal(t, "42", result.String())
	})

	t.Run("connection string from environment", func(t *testing.T) {
		result, err := m.Evaluate(context.Background(), request("uri"), func(string) {})
		require.NoError(t, err)

		assert.Equal(t, testConnection, result.String())
	})

	t.Run("failure carries stderr", func(t *testing.T) {
		_, err := m.Evaluate(context.Background(), request("fail"), func(string) {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MongoServerError: boom")
	})
}
