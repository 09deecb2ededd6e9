package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInit_ParsesLevel(t *testing.T) {
	Init("debug")
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	Init("nonsense")
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}

func TestSetOutput_WritesJSON(t *testing.T) {
	Init("info")
	var buf bytes.Buffer
	SetOutput(&buf)

	Log.WithField("email", "a@x.com").Info("hello")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"email":"a@x.com"`)
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"john@example.com": "j***@example.com",
		"a@x.com":          "a***@x.com",
		"@x.com":           "***",
		"no-at-sign":       "***",
		"":                 "***",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}
