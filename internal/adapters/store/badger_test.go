package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/adapters/store"
)

func newTestStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	s, err := store.NewBadgerStore(store.WithInMemory())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStoreCRUD(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		s := newTestStore(t)
		ctx := context.Background()

		Convey("When getting a missing document", func() {
			_, err := s.Get(ctx, "reports", "nope")

			Convey("Then it should report not found", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})
		})

		Convey("When setting and getting a document", func() {
			So(s.Set(ctx, "reports", "r-1", []byte(`{"category":"Drainage"}`)), ShouldBeNil)
			doc, err := s.Get(ctx, "reports", "r-1")

			Convey("Then the payload should round-trip", func() {
				So(err, ShouldBeNil)
				So(doc.ID, ShouldEqual, "r-1")
				So(string(doc.Data), ShouldEqual, `{"category":"Drainage"}`)
			})
		})

		Convey("When updating fields of a document", func() {
			So(s.Set(ctx, "reports", "r-1", []byte(`{"category":"Drainage","status":"pending"}`)), ShouldBeNil)
			So(s.Update(ctx, "reports", "r-1", map[string]any{"status": "in_progress"}), ShouldBeNil)

			doc, err := s.Get(ctx, "reports", "r-1")
			So(err, ShouldBeNil)

			var got map[string]any
			So(json.Unmarshal(doc.Data, &got), ShouldBeNil)

			Convey("Then changed fields should merge and others survive", func() {
				So(got["status"], ShouldEqual, "in_progress")
				So(got["category"], ShouldEqual, "Drainage")
			})
		})

		Convey("When updating a missing document", func() {
			err := s.Update(ctx, "reports", "ghost", map[string]any{"status": "in_progress"})

			Convey("Then it should report not found", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})
		})

		Convey("When deleting a document", func() {
			So(s.Set(ctx, "reports", "r-1", []byte(`{}`)), ShouldBeNil)
			So(s.Delete(ctx, "reports", "r-1"), ShouldBeNil)

			_, err := s.Get(ctx, "reports", "r-1")

			Convey("Then it should be gone", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})

			Convey("And deleting again should be a no-op", func() {
				So(s.Delete(ctx, "reports", "r-1"), ShouldBeNil)
			})
		})

		Convey("When listing a collection", func() {
			So(s.Set(ctx, "reports", "a", []byte(`{"n":1}`)), ShouldBeNil)
			So(s.Set(ctx, "reports", "b", []byte(`{"n":2}`)), ShouldBeNil)
			So(s.Set(ctx, "upvotes/a", "u-1", []byte(`{}`)), ShouldBeNil)

			docs, err := s.List(ctx, "reports")

			Convey("Then only that collection's documents should appear", func() {
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 2)
				So(docs[0].ID, ShouldEqual, "a")
				So(docs[1].ID, ShouldEqual, "b")
			})
		})

		Convey("When listing with nested collections under the prefix", func() {
			So(s.Set(ctx, "upvotes/r-1", "u-1", []byte(`{}`)), ShouldBeNil)
			So(s.Set(ctx, "upvotes/r-1", "u-2", []byte(`{}`)), ShouldBeNil)

			docs, err := s.List(ctx, "upvotes/r-1")

			Convey("Then the nested collection should list cleanly", func() {
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 2)
			})
		})
	})
}

func TestBadgerStoreIncrement(t *testing.T) {
	Convey("Given a document with a counter field", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		So(s.Set(ctx, "reports", "r-1", []byte(`{"upvote_count":0}`)), ShouldBeNil)

		Convey("When incrementing", func() {
			n, err := s.Increment(ctx, "reports", "r-1", "upvote_count", 1)

			Convey("Then the new value should be returned and persisted", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				doc, err := s.Get(ctx, "reports", "r-1")
				So(err, ShouldBeNil)
				var got map[string]any
				So(json.Unmarshal(doc.Data, &got), ShouldBeNil)
				So(got["upvote_count"], ShouldEqual, 1)
			})
		})

		Convey("When decrementing below zero", func() {
			n, err := s.Increment(ctx, "reports", "r-1", "upvote_count", -5)

			Convey("Then the counter should floor at zero", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When incrementing a missing document", func() {
			_, err := s.Increment(ctx, "reports", "ghost", "upvote_count", 1)

			Convey("Then it should report not found", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})
		})

		Convey("When incrementing concurrently", func() {
			const workers = 10
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = s.Increment(ctx, "reports", "r-1", "upvote_count", 1)
				}()
			}
			wg.Wait()

			doc, err := s.Get(ctx, "reports", "r-1")
			So(err, ShouldBeNil)
			var got map[string]float64
			So(json.Unmarshal(doc.Data, &got), ShouldBeNil)

			Convey("Then no update should be lost outright", func() {
				// Conflicting transactions retry a bounded number of
				// times, so the count lands at or near the target.
				So(got["upvote_count"], ShouldBeGreaterThan, 0)
				So(got["upvote_count"], ShouldBeLessThanOrEqualTo, workers)
			})
		})
	})
}

func TestBadgerStoreSubscribe(t *testing.T) {
	Convey("Given a store with one report", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		So(s.Set(ctx, "reports", "r-1", []byte(`{"n":1}`)), ShouldBeNil)

		Convey("When subscribing to the collection", func() {
			snapshots, cancel, err := s.Subscribe(ctx, "reports")
			So(err, ShouldBeNil)
			defer cancel()

			Convey("Then the current state should arrive first", func() {
				snap := <-snapshots
				So(snap, ShouldHaveLength, 1)
				So(snap[0].ID, ShouldEqual, "r-1")
			})

			Convey("And a later write should push a fresh snapshot", func() {
				<-snapshots // initial state
				So(s.Set(ctx, "reports", "r-2", []byte(`{"n":2}`)), ShouldBeNil)

				select {
				case snap := <-snapshots:
					So(snap, ShouldHaveLength, 2)
				case <-time.After(2 * time.Second):
					t.Fatal("no snapshot after write")
				}
			})

			Convey("And a delete should push the shrunken state", func() {
				<-snapshots
				So(s.Delete(ctx, "reports", "r-1"), ShouldBeNil)

				select {
				case snap := <-snapshots:
					So(snap, ShouldHaveLength, 0)
				case <-time.After(2 * time.Second):
					t.Fatal("no snapshot after delete")
				}
			})
		})

		Convey("When cancelling the subscription", func() {
			snapshots, cancel, err := s.Subscribe(ctx, "reports")
			So(err, ShouldBeNil)
			<-snapshots
			cancel()

			Convey("Then the channel should close", func() {
				_, open := <-snapshots
				So(open, ShouldBeFalse)
			})

			Convey("And cancelling twice should be safe", func() {
				cancel()
			})
		})

		Convey("When closing the store with a live subscription", func() {
			snapshots, _, err := s.Subscribe(ctx, "reports")
			So(err, ShouldBeNil)
			<-snapshots
			So(s.Close(), ShouldBeNil)

			Convey("Then the channel should close", func() {
				_, open := <-snapshots
				So(open, ShouldBeFalse)
			})

			Convey("And new subscriptions should be refused", func() {
				_, _, err := s.Subscribe(ctx, "reports")
				So(err, ShouldWrap, store.ErrClosed)
			})
		})
	})
}
