package tagcache

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// tagScript stamps key in the tag set with the next value of the tag
// sequence. KEYS: set, sequence. ARGV: key.
var tagScript = redis.NewScript(`
local v = redis.call('INCR', KEYS[2])
redis.call('ZADD', KEYS[1], v, ARGV[1])
return v
`)

// removeScript drops members whose stamp still equals the one read earlier.
// KEYS: set. ARGV: member, stamp, member, stamp, ...
var removeScript = redis.NewScript(`
local removed = 0
for i = 1, #ARGV, 2 do
  local cur = redis.call('ZSCORE', KEYS[1], ARGV[i])
  if cur and tonumber(cur) == tonumber(ARGV[i + 1]) then
    removed = removed + redis.call('ZREM', KEYS[1], ARGV[i])
  end
end
return removed
`)

// Redis is a TagCache shared by every process connected to the same Redis.
//
// Each tag is a sorted set stored under "{prefix}:tag:{<tag>}" whose scores
// come from the counter "{prefix}:tagseq:{<tag>}". The braces keep both keys
// in one cluster slot. Removals only drop members whose score is unchanged,
// so a key tagged again during Invalidate or Prune keeps its membership.
type Redis struct {
	handlers
	client redis.UniversalClient
	opts   *redisOptions
}

// NewRedis creates a Redis-backed tag index.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Redis{
		client: client,
		opts:   o,
	}
}

// Tag stamps key in the set of every tag in one pipeline.
func (r *Redis) Tag(ctx context.Context, key string, tags ...string) error {
	if key == "" {
		return ErrEmptyKey
	}
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return nil
	}

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, tag := range tags {
			tagScript.Eval(ctx, pipe, []string{r.setKey(tag), r.seqKey(tag)}, key)
		}
		return nil
	})
	return err
}

// Keys returns the members of the tag set, sorted.
func (r *Redis) Keys(ctx context.Context, tag string) ([]string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, ErrEmptyTag
	}

	keys, err := r.client.ZRange(ctx, r.setKey(tag), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Tags lists every tag with at least one key using SCAN.
func (r *Redis) Tags(ctx context.Context) ([]string, error) {
	prefix := r.tagPrefix()

	var (
		tags   []string
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", r.opts.scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if tag, ok := strings.CutPrefix(k, prefix+"{"); ok {
				tags = append(tags, strings.TrimSuffix(tag, "}"))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	slices.Sort(tags)
	return slices.Compact(tags), nil
}

// Invalidate notifies handlers with the current members, then removes those
// members unless they were tagged again meanwhile. Redis deletes the set
// once it is empty.
func (r *Redis) Invalidate(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrEmptyTag
	}

	members, err := r.members(ctx, tag)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.Member.(string)
	}
	slices.Sort(keys)

	if err := r.notify(ctx, tag, keys); err != nil {
		return err
	}

	_, err = r.remove(ctx, tag, members)
	return err
}

// Prune walks every tag set and removes members whose entries are gone.
// Each key is checked once per run.
func (r *Redis) Prune(ctx context.Context, exists ExistsFunc) (int, error) {
	tags, err := r.Tags(ctx)
	if err != nil {
		return 0, err
	}

	alive := make(map[string]bool)
	removed := 0
	for _, tag := range tags {
		members, err := r.members(ctx, tag)
		if err != nil {
			return removed, err
		}

		var dead []redis.Z
		for _, m := range members {
			key := m.Member.(string)
			ok, seen := alive[key]
			if !seen {
				if ok, err = exists(ctx, key); err != nil {
					return removed, err
				}
				alive[key] = ok
			}
			if !ok {
				dead = append(dead, m)
			}
		}
		if len(dead) == 0 {
			continue
		}

		n, err := r.remove(ctx, tag, dead)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (r *Redis) members(ctx context.Context, tag string) ([]redis.Z, error) {
	return r.client.ZRangeWithScores(ctx, r.setKey(tag), 0, -1).Result()
}

// remove drops members whose stamp has not changed since they were read.
func (r *Redis) remove(ctx context.Context, tag string, members []redis.Z) (int, error) {
	args := make([]any, 0, 2*len(members))
	for _, m := range members {
		args = append(args, m.Member, strconv.FormatFloat(m.Score, 'f', -1, 64))
	}

	n, err := removeScript.Run(ctx, r.client, []string{r.setKey(tag)}, args...).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Redis) tagPrefix() string {
	if r.opts.prefix == "" {
		return "tag:"
	}
	return r.opts.prefix + ":tag:"
}

func (r *Redis) setKey(tag string) string {
	return r.tagPrefix() + "{" + tag + "}"
}

func (r *Redis) seqKey(tag string) string {
	if r.opts.prefix == "" {
		return "tagseq:{" + tag + "}"
	}
	return r.opts.prefix + ":tagseq:{" + tag + "}"
}

var _ TagCache = (*Redis)(nil)
