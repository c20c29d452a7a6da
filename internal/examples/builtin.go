package examples

import "redisquery-backend/internal/models"

// Builtin returns the examples shipped with the server. The first one seeds
// every new session.
func Builtin() []models.Example {
	return []models.Example{
		{
			Name:        "E-commerce (JSON + Search)",
			Description: "Modern Redis Stack approach",
			KeyPatterns: "product:{sku}, category:{name}:products",
			SampleData: `JSON.SET product:KB-99 $ '{
  "sku": "KB-99",
  "name": "Mechanical Keyboard",
  "price": 89.99,
  "tags": ["gaming", "rgb"],
  "stock": 45
}'`,
			IndexInfo:     "INDEX: idx:products ON JSON\nFIELDS: $.name TEXT, $.price NUMERIC, $.tags[*] TAG",
			OtherMetadata: "Using RedisJSON and RediSearch modules.",
			Query:         "Find all gaming tags with price under 100 sorted by price",
		},
		{
			Name:          "User Session (Hashes)",
			Description:   "High performance hash structure",
			KeyPatterns:   "user:session:{uid}, user:active_sessions (SET)",
			SampleData:    "HSET user:session:101 \n  username \"jdoe\" \n  last_ip \"192.168.1.1\" \n  login_ts 1715602000",
			IndexInfo:     "No search index. Primary key access only.",
			OtherMetadata: "login_ts is a Unix Timestamp. user:active_sessions is a Set of UIDs.",
			Query:         "How do I add user 101 to active sessions?",
		},
	}
}
