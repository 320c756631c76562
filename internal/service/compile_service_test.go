package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fanreel/api/internal/model"
)

// A submission that cannot reach the queue must leave no trace: no
// pending job record and no held track reference, so the track stays
// deletable.
func TestStartCompile_EnqueueFailureReleasesTrackRef(t *testing.T) {
	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	// Queue backend on a dead address: Enqueue fails after the job
	// record and track reference have been written.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { asynqClient.Close() })

	trackService := NewTrackService(redisClient, nil)
	compileService := NewCompileService(redisClient, asynqClient)

	track, err := trackService.Upload(ctx, "owner-abort", "beat.mp3", "audio/mpeg",
		1024, bytes.NewReader(make([]byte, 1024)))
	if err != nil {
		t.Fatalf("upload track: %v", err)
	}
	t.Cleanup(func() {
		redisClient.Del(ctx, trackKey(track.ID), trackRefsKey(track.ID))
		redisClient.ZRem(ctx, trackOwnerKey("owner-abort"), track.ID)
	})

	jobsBefore, err := redisClient.Keys(ctx, "job:*").Result()
	if err != nil {
		t.Fatalf("list job keys: %v", err)
	}

	_, err = compileService.StartCompile(ctx, "owner-abort", &model.CompileStartRequest{
		VideoURLs: []string{"https://clips.example.com/a.mp4"},
		AudioTrack: &model.AudioTrackRef{
			Kind: model.TrackKindCustom,
			ID:   track.ID,
		},
		Quality: model.QualityFast,
	})
	if err == nil {
		t.Fatal("expected StartCompile to fail when the queue is unreachable")
	}

	refs, err := redisClient.Get(ctx, trackRefsKey(track.ID)).Int64()
	if err != nil && err != redis.Nil {
		t.Fatalf("read track refs: %v", err)
	}
	if refs != 0 {
		t.Fatalf("expected track reference released, got %d", refs)
	}

	jobsAfter, err := redisClient.Keys(ctx, "job:*").Result()
	if err != nil {
		t.Fatalf("list job keys: %v", err)
	}
	if len(jobsAfter) != len(jobsBefore) {
		t.Fatalf("expected no job record left behind, had %d now %d",
			len(jobsBefore), len(jobsAfter))
	}

	// The track must remain deletable.
	if err := trackService.Delete(ctx, "owner-abort", track.ID); err != nil {
		t.Fatalf("delete track after aborted submission: %v", err)
	}
}
