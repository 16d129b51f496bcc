package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				l := Get()
				So(l, ShouldNotBeNil)
				So(func() { l.Info(context.Background(), "hello", String("k", "v")) }, ShouldNotPanic)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := InitWithFormat("xml", &bytes.Buffer{})

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithFormat("json", &buf), ShouldBeNil)
		defer func() { _ = Init() }()

		Named("workflow").Info(context.Background(), "step applied",
			String("session", "s-1"),
			Int("week", 2),
			Bool("accepted", true),
			Duration("took", 1500*time.Millisecond),
			Error(errors.New("boom")),
		)

		Convey("Then the record carries the component and fields", func() {
			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
			So(rec["msg"], ShouldEqual, "step applied")
			So(rec["component"], ShouldEqual, "workflow")
			So(rec["session"], ShouldEqual, "s-1")
			So(rec["week"], ShouldEqual, float64(2))
			So(rec["accepted"], ShouldEqual, true)
			So(rec["took"], ShouldEqual, "1.5s")
			So(rec["error"], ShouldEqual, "boom")
			So(rec["source"], ShouldContainSubstring, "logger_test.go")
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a text logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithFormat("text", &buf), ShouldBeNil)
		defer func() { _ = Init() }()
		ctx := context.Background()

		Convey("Debug is suppressed at info level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.String(), ShouldBeEmpty)
		})

		Convey("Debug is emitted after lowering the level", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().With(String("division", "Poke")).Debug(ctx, "visible")
			So(buf.String(), ShouldContainSubstring, "visible")
			So(buf.String(), ShouldContainSubstring, "division=Poke")
		})

		Convey("Warn passes and info is dropped at warn level", func() {
			So(SetLevelString("warning"), ShouldBeNil)
			Get().Info(ctx, "quiet")
			Get().Warn(ctx, "loud")
			So(strings.Contains(buf.String(), "quiet"), ShouldBeFalse)
			So(buf.String(), ShouldContainSubstring, "loud")
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Nop never panics", t, func() {
		l := Nop().Named("x")
		So(func() { l.Error(context.Background(), "ignored", Any("v", 1)) }, ShouldNotPanic)
	})
}
