package report_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Skyrin/go-migrate/report"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := report.NewConsole(&buf)
	c.SetColor(false)

	c.Report(report.SeveritySuccess, "created table users")
	c.Report(report.SeverityError, "line 3: syntax error\nCREATE TABBLE foo")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^\[\s*\S+s\] ✓ created table users$`, lines[0])
	assert.Regexp(t, `^\[\s*\S+s\] ✗ line 3: syntax error$`, lines[1])
	assert.Equal(t, "CREATE TABBLE foo", strings.TrimSpace(lines[2]))
	assert.NotContains(t, buf.String(), "\x1b[")

	buf.Reset()
	c.SetColor(true)
	c.Report(report.SeverityWarning, "tolerated")
	assert.Contains(t, buf.String(), "\x1b[33m")
}

func TestHTML(t *testing.T) {
	t.Run("escapes and flushes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := report.NewHTML(rec)

		h.Report(report.SeverityError, "<script>alert('x')</script>")
		assert.True(t, rec.Flushed)
		assert.Equal(t,
			"<div class=\"error\" style=\"color:#c62828\">&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;</div>\n",
			rec.Body.String())
	})

	t.Run("flushes buffered writers", func(t *testing.T) {
		var buf bytes.Buffer
		h := report.NewHTML(bufio.NewWriter(&buf))

		h.Report(report.SeverityInfo, "a\nb")
		assert.Contains(t, buf.String(), ">a<br>b</div>")
	})
}

func TestMulti(t *testing.T) {
	m1, m2 := &report.Memory{}, &report.Memory{}
	r := report.Multi(m1, nil, m2)

	r.Report(report.SeverityInfo, "one")
	report.Reportf(r, report.SeverityWarning, "two %d", 2)

	for _, m := range []*report.Memory{m1, m2} {
		require.Equal(t, []report.Entry{
			{Severity: report.SeverityInfo, Message: "one"},
			{Severity: report.SeverityWarning, Message: "two 2"},
		}, m.Entries)
		assert.Equal(t, 1, m.Count(report.SeverityWarning))
	}
}

type fakeWriter struct {
	err     error
	calls   int
	msgList []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgList = append(f.msgList, msgs...)
	return nil
}

func TestKafka(t *testing.T) {
	t.Run("publishes ordered events keyed by run", func(t *testing.T) {
		w := &fakeWriter{}
		k := report.NewKafka(w, "run-1")

		k.Report(report.SeverityInfo, "start")
		k.Report(report.SeveritySuccess, "done")

		require.Len(t, w.msgList, 2)
		for i, msg := range w.msgList {
			assert.Equal(t, "run-1", string(msg.Key))

			ev, err := report.ParseEvent(msg.Value)
			require.NoError(t, err)
			assert.Equal(t, "run-1", ev.Run)
			assert.Equal(t, i+1, ev.Seq)
		}
	})

	t.Run("every message is written through on its own", func(t *testing.T) {
		w := &fakeWriter{}
		k := report.NewKafka(w, "run-4")

		for i := 1; i <= 3; i++ {
			k.Report(report.SeverityInfo, fmt.Sprintf("statement %d", i))
			assert.Equal(t, i, w.calls)
			require.Len(t, w.msgList, i)

			ev, err := report.ParseEvent(w.msgList[i-1].Value)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("statement %d", i), ev.Message)
		}
	})

	t.Run("events are json documents", func(t *testing.T) {
		w := &fakeWriter{}
		report.NewKafka(w, "run-3").Report(report.SeverityWarning, "careful")

		require.Len(t, w.msgList, 1)
		doc := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(w.msgList[0].Value, &doc))
		assert.Equal(t, "warning", doc["severity"])
		assert.Equal(t, "careful", doc["message"])

		_, err := report.ParseEvent([]byte("not json"))
		require.Error(t, err)
	})

	t.Run("publish failures do not panic", func(t *testing.T) {
		k := report.NewKafka(&fakeWriter{err: errors.New("broker down")}, "run-2")
		assert.NotPanics(t, func() {
			k.Report(report.SeverityError, "boom")
		})
	})
}

func TestLog(t *testing.T) {
	l := report.NewLog("plan")
	assert.NotPanics(t, func() {
		l.Report(report.SeverityWarning, "tolerated")
	})
}
