package model_test

import (
	"encoding/json"
	"math"
	"testing"

	model "github.com/okian/ffnsync/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParsedRecord(t *testing.T) {
	convey.Convey("Given a ParsedRecord", t, func() {
		convey.Convey("When it has no date and no points", func() {
			rec := model.ParsedRecord{EventName: "50 NL", PoolLength: 25, TimeSeconds: 30.12}
			data, err := json.Marshal(rec)

			convey.Convey("Then nullable fields should encode as null", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual,
					`{"event_name":"50 NL","pool_length":25,"time_seconds":30.12,"record_date":null,"ffn_points":null}`)
			})
		})

		convey.Convey("When computing its key", func() {
			rec := model.ParsedRecord{EventName: "100 NL", PoolLength: 50}

			convey.Convey("Then it should combine event and pool", func() {
				convey.So(rec.Key(), convey.ShouldResemble, model.RecordKey{EventName: "100 NL", PoolLength: 50})
				convey.So(rec.Key().String(), convey.ShouldEqual, "100 NL/50m")
			})
		})
	})
}

func TestStoredRecordBestTime(t *testing.T) {
	convey.Convey("Given a StoredRecord", t, func() {
		convey.Convey("When no time is stored", func() {
			rec := model.StoredRecord{}

			convey.Convey("Then the best time should be +Inf", func() {
				convey.So(math.IsInf(rec.BestTime(), 1), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a time is stored", func() {
			tm := 30.0
			rec := model.StoredRecord{TimeSeconds: &tm}

			convey.Convey("Then the best time should be that time", func() {
				convey.So(rec.BestTime(), convey.ShouldEqual, 30.0)
			})
		})
	})
}

func TestSummary(t *testing.T) {
	convey.Convey("Given an empty Summary", t, func() {
		var s model.Summary

		convey.Convey("When adding decisions", func() {
			s.Add(model.DecisionInsert)
			s.Add(model.DecisionUpdate)
			s.Add(model.DecisionUpdate)
			s.Add(model.DecisionSkip)

			convey.Convey("Then each counter should match", func() {
				convey.So(s.Inserted, convey.ShouldEqual, 1)
				convey.So(s.Updated, convey.ShouldEqual, 2)
				convey.So(s.Skipped, convey.ShouldEqual, 1)
				convey.So(s.Total(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When encoding without failures", func() {
			data, err := json.Marshal(model.Summary{Inserted: 1})

			convey.Convey("Then failed should be omitted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, `{"inserted":1,"updated":0,"skipped":0}`)
			})
		})
	})
}

func TestDecisionString(t *testing.T) {
	convey.Convey("Given merge decisions", t, func() {
		convey.So(model.DecisionInsert.String(), convey.ShouldEqual, "insert")
		convey.So(model.DecisionUpdate.String(), convey.ShouldEqual, "update")
		convey.So(model.DecisionSkip.String(), convey.ShouldEqual, "skip")
		convey.So(model.Decision(42).String(), convey.ShouldEqual, "unknown")
	})
}
