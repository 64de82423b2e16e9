package pool

import (
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func scenarioCookie(seed byte) *credential.CookieStatus {
	raw := strings.Repeat(string([]byte{'A' + seed%26}), 86) + "-abcdefAA"
	cs, err := credential.NewCookieStatus(raw, nil)
	if err != nil {
		panic(err)
	}
	return cs
}

func TestCookiePoolDispatchScenarios(t *testing.T) {
	Convey("a pool seeded with cookies A, B, C", t, func() {
		a, b, c := scenarioCookie(0), scenarioCookie(1), scenarioCookie(2)
		p := NewCookiePool(nil, nil)
		defer p.Close()
		p.Submit(a)
		p.Submit(b)
		p.Submit(c)

		Convey("affinity pins repeat hashes while rotation serves the rest", func() {
			h := uint64(0xDEADBEEF)

			first, err := p.Request(&h)
			So(err, ShouldBeNil)
			So(first.Cookie.Raw(), ShouldEqual, a.Cookie.Raw())

			second, err := p.Request(nil)
			So(err, ShouldBeNil)
			So(second.Cookie.Raw(), ShouldEqual, b.Cookie.Raw())

			third, err := p.Request(&h)
			So(err, ShouldBeNil)
			So(third.Cookie.Raw(), ShouldEqual, a.Cookie.Raw())

			fourth, err := p.Request(nil)
			So(err, ShouldBeNil)
			So(fourth.Cookie.Raw(), ShouldEqual, c.Cookie.Raw())
		})

		Convey("a rate-limited cookie rotates out and the next request gets its neighbor", func() {
			got, err := p.Request(nil)
			So(err, ShouldBeNil)
			So(got.Cookie.Raw(), ShouldEqual, a.Cookie.Raw())

			resetsAt := time.Now().Add(time.Hour).Unix()
			reason := credential.TooManyRequest(resetsAt)
			p.Return(got, &reason)

			next, err := p.Request(nil)
			So(err, ShouldBeNil)
			So(next.Cookie.Raw(), ShouldEqual, b.Cookie.Raw())

			info := p.GetStatus()
			So(len(info.Valid), ShouldEqual, 2)
			So(len(info.Exhausted), ShouldEqual, 1)
			So(info.Exhausted[0].Cookie.Raw(), ShouldEqual, a.Cookie.Raw())
			So(*info.Exhausted[0].ResetTime, ShouldEqual, resetsAt)
		})

		Convey("an invalidating reason retires the cookie and blocks resubmission", func() {
			got, err := p.Request(nil)
			So(err, ShouldBeNil)

			reason := credential.Banned()
			p.Return(got, &reason)

			info := p.GetStatus()
			So(len(info.Valid), ShouldEqual, 2)
			So(len(info.Invalid), ShouldEqual, 1)

			// Submitting the retired cookie again is rejected outright.
			p.Submit(got)
			info = p.GetStatus()
			So(len(info.Valid), ShouldEqual, 2)
		})

		Convey("a past reset_time at return behaves like a plain return", func() {
			got, err := p.Request(nil)
			So(err, ShouldBeNil)

			reason := credential.TooManyRequest(time.Now().Add(-time.Minute).Unix())
			p.Return(got, &reason)

			info := p.GetStatus()
			So(len(info.Valid), ShouldEqual, 3)
			So(len(info.Exhausted), ShouldEqual, 0)
		})
	})
}
