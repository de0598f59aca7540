package request_test

import (
	"strings"
	"testing"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/fllo/go-coline/pkg/request"
)

func TestSpec_Body(t *testing.T) {
	t.Parallel()
	body, ok := request.NewSpec().WithFields(map[string]any{"b": "2", "a": "1"}).Body(nil)
	assert.True(t, ok)
	assert.Equal(t, "a=1&b=2", body)
	assert.Equal(t, 1, strings.Count(body, "&"))
}

func TestSpec_Body_Empty(t *testing.T) {
	t.Parallel()
	body, ok := request.NewSpec().Body(nil)
	assert.False(t, ok)
	assert.Empty(t, body)

	body, ok = request.NewSpec().WithFields(map[string]any{}).Body(nil)
	assert.False(t, ok)
	assert.Empty(t, body)
}

func TestSpec_Body_Escaping(t *testing.T) {
	t.Parallel()
	body, ok := request.NewSpec().WithFields(map[string]any{"name": "Jon Doe & co", "q": "a=b"}).Body(nil)
	assert.True(t, ok)
	assert.Equal(t, "name=Jon+Doe+%26+co&q=a%3Db", body)
}

func TestSpec_Body_Types(t *testing.T) {
	t.Parallel()
	fields := map[string]any{
		"int":   123,
		"float": 1.5,
		"bool":  true,
		"map": orderedmap.FromPairs([]orderedmap.Pair{
			{Key: "z", Value: "1"},
			{Key: "a", Value: "2"},
		}),
	}
	body, ok := request.NewSpec().WithFields(fields).Body(nil)
	assert.True(t, ok)
	assert.Equal(t, "bool=true&float=1.5&int=123&map=%7B%22z%22%3A%221%22%2C%22a%22%3A%222%22%7D", body)
}

func TestSpec_Body_InvalidFieldIsOmitted(t *testing.T) {
	t.Parallel()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	fields := map[string]any{"ok": "yes", "invalid": struct{ Foo string }{Foo: "bar"}}
	body, ok := request.NewSpec().WithFields(fields).Body(logger)
	assert.True(t, ok)
	assert.Equal(t, "ok=yes", body)

	var errorEntries []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorEntries = append(errorEntries, entry)
		}
	}
	if assert.Len(t, errorEntries, 1) {
		assert.Equal(t, "invalid", errorEntries[0].Data["field"])
		assert.Contains(t, errorEntries[0].Message, "cannot encode body field")
	}
}
