package configsource

import "testing"

func TestParseS3URL(t *testing.T) {
	cases := []struct {
		path       string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{"s3://my-bucket/configs/quasar.yaml", "my-bucket", "configs/quasar.yaml", true},
		{"s3://bucket/key", "bucket", "key", true},
		{"/etc/quasar/quasar.yaml", "", "", false},
		{"s3://bucket-only-no-key", "", "", false},
	}
	for _, c := range cases {
		bucket, key, ok := parseS3URL(c.path)
		if ok != c.wantOK || bucket != c.wantBucket || key != c.wantKey {
			t.Fatalf("parseS3URL(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.path, bucket, key, ok, c.wantBucket, c.wantKey, c.wantOK)
		}
	}
}
