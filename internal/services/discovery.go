package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"redisquery-backend/internal/models"
)

const (
	maxSampledPatterns = 3
	maxSampleItems     = 10
)

// DiscoveryService fills the four context fields from a live Redis by running
// the same commands a user would paste from redis-cli.
type DiscoveryService struct {
	redis     *redis.Client
	scanLimit int
}

func NewDiscoveryService(redisClient *redis.Client, scanLimit int) *DiscoveryService {
	if scanLimit <= 0 {
		scanLimit = 500
	}
	return &DiscoveryService{redis: redisClient, scanLimit: scanLimit}
}

func (s *DiscoveryService) Enabled() bool {
	return s != nil && s.redis != nil
}

// KeyPattern groups scanned keys that only differ in identifier segments.
type KeyPattern struct {
	Pattern   string
	Type      string
	Count     int
	SampleKey string
}

func (s *DiscoveryService) Discover(ctx context.Context) (models.SchemaContext, error) {
	if !s.Enabled() {
		return models.SchemaContext{}, &UnavailableError{Message: "Schema discovery is not configured. Set REDIS_URL to enable it."}
	}

	keys, err := s.scanKeys(ctx)
	if err != nil {
		return models.SchemaContext{}, fmt.Errorf("failed to scan keys: %w", err)
	}

	patterns := GroupKeyPatterns(keys)
	for _, p := range patterns {
		t, err := s.redis.Type(ctx, p.SampleKey).Result()
		if err != nil {
			log.Printf("discovery: TYPE %s failed: %v", p.SampleKey, err)
			continue
		}
		p.Type = t
	}

	return models.SchemaContext{
		KeyPatterns:   formatPatterns(patterns),
		SampleData:    s.sampleData(ctx, patterns),
		IndexInfo:     s.indexInfo(ctx),
		OtherMetadata: s.metadata(ctx, patterns),
	}, nil
}

func (s *DiscoveryService) scanKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, "*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if len(keys) >= s.scanLimit {
			return keys[:s.scanLimit], nil
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *DiscoveryService) sampleData(ctx context.Context, patterns []*KeyPattern) string {
	var b strings.Builder
	for i, p := range patterns {
		if i == maxSampledPatterns {
			break
		}
		sample, err := s.sampleKey(ctx, p.SampleKey, p.Type)
		if err != nil {
			log.Printf("discovery: sampling %s failed: %v", p.SampleKey, err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sample)
	}
	if b.Len() == 0 {
		return "No keys found."
	}
	return b.String()
}

func (s *DiscoveryService) sampleKey(ctx context.Context, key, keyType string) (string, error) {
	switch keyType {
	case "hash":
		fields, err := s.redis.HGetAll(ctx, key).Result()
		if err != nil {
			return "", err
		}
		return FormatHash(key, fields), nil
	case "string":
		val, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("GET %s\n%s", key, val), nil
	case "list":
		items, err := s.redis.LRange(ctx, key, 0, maxSampleItems-1).Result()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("LRANGE %s 0 %d\n%s", key, maxSampleItems-1, strings.Join(items, "\n")), nil
	case "set":
		members, err := s.redis.SRandMemberN(ctx, key, maxSampleItems).Result()
		if err != nil {
			return "", err
		}
		sort.Strings(members)
		return fmt.Sprintf("SRANDMEMBER %s %d\n%s", key, maxSampleItems, strings.Join(members, "\n")), nil
	case "zset":
		members, err := s.redis.ZRangeWithScores(ctx, key, 0, maxSampleItems-1).Result()
		if err != nil {
			return "", err
		}
		lines := make([]string, len(members))
		for i, z := range members {
			lines[i] = fmt.Sprintf("%v %v", z.Member, z.Score)
		}
		return fmt.Sprintf("ZRANGE %s 0 %d WITHSCORES\n%s", key, maxSampleItems-1, strings.Join(lines, "\n")), nil
	case "stream":
		entries, err := s.redis.XRangeN(ctx, key, "-", "+", 3).Result()
		if err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "XRANGE %s - + COUNT 3", key)
		for _, e := range entries {
			fmt.Fprintf(&b, "\n%s %s", e.ID, FormatReply(e.Values))
		}
		return b.String(), nil
	case "ReJSON-RL":
		doc, err := s.redis.Do(ctx, "JSON.GET", key).Result()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("JSON.GET %s\n%s", key, FormatReply(doc)), nil
	default:
		return fmt.Sprintf("%s (%s)", key, keyType), nil
	}
}

func (s *DiscoveryService) indexInfo(ctx context.Context) string {
	list, err := s.redis.Do(ctx, "FT._LIST").Result()
	if err != nil {
		return "No search index information (RediSearch not available: " + err.Error() + ")."
	}

	names := replyStrings(list)
	if len(names) == 0 {
		return "No search indexes defined. Primary key access only."
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		info, err := s.redis.Do(ctx, "FT.INFO", name).Result()
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "INDEX: %s", name)
		if err != nil {
			fmt.Fprintf(&b, "\n(FT.INFO failed: %v)", err)
			continue
		}
		b.WriteString("\n")
		b.WriteString(FormatReply(pickIndexInfo(info)))
	}
	return b.String()
}

func (s *DiscoveryService) metadata(ctx context.Context, patterns []*KeyPattern) string {
	var lines []string

	if info, err := s.redis.Info(ctx, "server").Result(); err == nil {
		if v := infoField(info, "redis_version"); v != "" {
			lines = append(lines, "Redis version: "+v)
		}
	}
	if n, err := s.redis.DBSize(ctx).Result(); err == nil {
		lines = append(lines, fmt.Sprintf("Keys in database: %d", n))
	}
	if mods, err := s.redis.Do(ctx, "MODULE", "LIST").Result(); err == nil {
		if names := moduleNames(mods); len(names) > 0 {
			lines = append(lines, "Modules: "+strings.Join(names, ", "))
		} else {
			lines = append(lines, "Modules: none")
		}
	}

	for i, p := range patterns {
		if i == maxSampledPatterns {
			break
		}
		ttl, err := s.redis.TTL(ctx, p.SampleKey).Result()
		if err != nil {
			continue
		}
		if ttl < 0 {
			lines = append(lines, fmt.Sprintf("%s: no expiry", p.Pattern))
		} else {
			lines = append(lines, fmt.Sprintf("%s: TTL %s", p.Pattern, ttl.Round(time.Second)))
		}
	}

	return strings.Join(lines, "\n")
}

// GroupKeyPatterns collapses keys into patterns ordered by frequency.
func GroupKeyPatterns(keys []string) []*KeyPattern {
	byPattern := make(map[string]*KeyPattern)
	var ordered []*KeyPattern
	for _, key := range keys {
		pattern := InferKeyPattern(key)
		p, ok := byPattern[pattern]
		if !ok {
			p = &KeyPattern{Pattern: pattern, SampleKey: key}
			byPattern[pattern] = p
			ordered = append(ordered, p)
		}
		p.Count++
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Count != ordered[j].Count {
			return ordered[i].Count > ordered[j].Count
		}
		return ordered[i].Pattern < ordered[j].Pattern
	})
	return ordered
}

// InferKeyPattern replaces identifier-looking segments of a colon separated
// key with {id}.
func InferKeyPattern(key string) string {
	segments := strings.Split(key, ":")
	for i, seg := range segments {
		if isIdentifier(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, ":")
}

func isIdentifier(seg string) bool {
	if seg == "" {
		return false
	}
	if isDigits(seg) {
		return true
	}
	if _, err := uuid.Parse(seg); err == nil && len(seg) >= 32 {
		return true
	}
	return len(seg) >= 12 && isHex(seg) && !hasNoDigits(seg)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

func hasNoDigits(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	return true
}

func formatPatterns(patterns []*KeyPattern) string {
	if len(patterns) == 0 {
		return "No keys found."
	}
	lines := make([]string, len(patterns))
	for i, p := range patterns {
		keyType := p.Type
		if keyType == "" {
			keyType = "unknown"
		}
		lines[i] = fmt.Sprintf("%s (%s, %d sampled)", p.Pattern, strings.ToUpper(keyType), p.Count)
	}
	return strings.Join(lines, "\n")
}

// FormatHash renders HGETALL output the way redis-cli users paste it.
func FormatHash(key string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "HSET %s", key)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s %q", name, fields[name])
	}
	return b.String()
}

// FormatReply renders a raw command reply. It accepts both RESP2 arrays and
// RESP3 maps.
func FormatReply(v interface{}) string {
	var b strings.Builder
	writeReply(&b, v, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeReply(b *strings.Builder, v interface{}, depth int) {
	indent := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case nil:
		b.WriteString(indent + "(nil)\n")
	case string:
		b.WriteString(indent + val + "\n")
	case []byte:
		b.WriteString(indent + string(val) + "\n")
	case []interface{}:
		for _, item := range val {
			switch item.(type) {
			case []interface{}, map[interface{}]interface{}, map[string]interface{}:
				writeReply(b, item, depth+1)
			default:
				writeReply(b, item, depth)
			}
		}
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(val))
		lookup := make(map[string]interface{}, len(val))
		for k, item := range val {
			ks := fmt.Sprint(k)
			keys = append(keys, ks)
			lookup[ks] = item
		}
		writeMap(b, keys, lookup, depth)
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		writeMap(b, keys, val, depth)
	default:
		fmt.Fprintf(b, "%s%v\n", indent, val)
	}
}

func writeMap(b *strings.Builder, keys []string, values map[string]interface{}, depth int) {
	indent := strings.Repeat("  ", depth)
	sort.Strings(keys)
	for _, k := range keys {
		switch item := values[k].(type) {
		case []interface{}, map[interface{}]interface{}, map[string]interface{}:
			b.WriteString(indent + k + ":\n")
			writeReply(b, item, depth+1)
		default:
			fmt.Fprintf(b, "%s%s: %v\n", indent, k, item)
		}
	}
}

// pickIndexInfo keeps the FT.INFO entries that describe the schema.
func pickIndexInfo(info interface{}) interface{} {
	wanted := map[string]bool{
		"index_name":       true,
		"index_definition": true,
		"attributes":       true,
		"num_docs":         true,
	}

	switch val := info.(type) {
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{})
		for k, item := range val {
			if wanted[fmt.Sprint(k)] {
				out[k] = item
			}
		}
		return out
	case []interface{}:
		out := make(map[interface{}]interface{})
		for i := 0; i+1 < len(val); i += 2 {
			k := fmt.Sprint(val[i])
			if wanted[k] {
				out[k] = val[i+1]
			}
		}
		return out
	default:
		return info
	}
}

func replyStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		if set, ok := v.(map[interface{}]bool); ok {
			for k := range set {
				items = append(items, k)
			}
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// moduleNames extracts module names from MODULE LIST in either protocol.
func moduleNames(v interface{}) []string {
	mods, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, m := range mods {
		switch mod := m.(type) {
		case map[interface{}]interface{}:
			if name, ok := mod["name"]; ok {
				names = append(names, fmt.Sprint(name))
			}
		case []interface{}:
			for i := 0; i+1 < len(mod); i += 2 {
				if fmt.Sprint(mod[i]) == "name" {
					names = append(names, fmt.Sprint(mod[i+1]))
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func infoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, field+":") {
			return strings.TrimPrefix(line, field+":")
		}
	}
	return ""
}
