package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/sdk"
	"io"
	"sort"
	"strings"
)

func NewNatsRepository(nc *nats.Conn, cfg Config) (Repository, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to jetstream: %w", err)
	}

	ctx := context.Background()
	kv, err := js.KeyValue(ctx, cfg.KeyValueBucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		log.Info().Str("bucket", cfg.KeyValueBucket).Msg("creating release bucket")
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      cfg.KeyValueBucket,
			Description: "macrelease release records",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get key value store: %w", err)
	}

	obs, err := js.ObjectStore(ctx, cfg.ObjectStoreBucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		log.Info().Str("bucket", cfg.ObjectStoreBucket).Msg("creating artifact bucket")
		obs, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      cfg.ObjectStoreBucket,
			Description: "macrelease release artifacts",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get object store: %w", err)
	}

	return &natsRepository{
		nc:     nc,
		kv:     kv,
		obs:    obs,
		prefix: cfg.Prefix,
	}, nil
}

type natsRepository struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	obs    jetstream.ObjectStore
	prefix string
}

func (n *natsRepository) Publish(ctx context.Context, rel sdk.Release, artifact io.Reader) error {
	name := ObjectName(n.prefix, rel.Version, rel.Artifact)
	info, err := n.obs.Put(ctx, jetstream.ObjectMeta{
		Name:        name,
		Description: fmt.Sprintf("%s %s (%d)", rel.App, rel.Version, rel.Build),
	}, artifact)
	if err != nil {
		return fmt.Errorf("unable to upload artifact: %w", err)
	}
	log.Debug().Str("object", info.Name).Uint64("size", info.Size).Msg("artifact uploaded")

	b, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("unable to encode release: %w", err)
	}

	key := ReleaseKey(n.prefix, rel.Version, rel.Build)
	rev, err := n.kv.Put(ctx, key, b)
	if err != nil {
		return fmt.Errorf("unable to record release: %w", err)
	}

	log.Info().Str("key", key).Uint64("revision", rev).Msg("release recorded")
	return nil
}

func (n *natsRepository) List(ctx context.Context) ([]sdk.Release, error) {
	keys, err := n.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to list releases: %w", err)
	}

	var result []sdk.Release
	for _, key := range keys {
		if !strings.HasPrefix(key, releaseKeyPrefix(n.prefix)) {
			continue
		}

		entry, err := n.kv.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("unable to read release")
			continue
		}

		var rel sdk.Release
		if err := json.Unmarshal(entry.Value(), &rel); err != nil {
			log.Error().Err(err).Str("key", key).Msg("unable to unmarshal stored release")
			continue
		}
		result = append(result, rel)
	}

	SortReleases(result)
	return result, nil
}

func (n *natsRepository) Close() error {
	if n.nc == nil {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		return fmt.Errorf("unable to drain connection: %w", err)
	}
	return nil
}

// SortReleases orders releases newest first.
func SortReleases(releases []sdk.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		if !releases[i].PublishedAt.Equal(releases[j].PublishedAt) {
			return releases[i].PublishedAt.After(releases[j].PublishedAt)
		}
		return releases[i].Build > releases[j].Build
	})
}
