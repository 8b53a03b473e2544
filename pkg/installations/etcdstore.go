package installations

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/lithammer/shortuuid/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultEtcdPrefix is the root of all the keys that [EtcdStore] manages.
const DefaultEtcdPrefix = "/manabi"

// etcdKV is the subset of [clientv3.Client] that [EtcdStore] uses.
type etcdKV interface {
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
}

// EtcdStore implements both [Store] and [StateStore] on top of etcd.
//
// Key layout (under the configured prefix):
//   - installations/<enterprise>-<team>/bot-latest
//   - installations/<enterprise>-<team>/installer-latest
//   - installations/<enterprise>-<team>/installer-<user>-latest
//   - states/<state> (attached to a lease, for expiration)
type EtcdStore struct {
	kv         etcdKV
	prefix     string
	expiration time.Duration
	now        func() time.Time
}

// NewEtcdStore wraps an etcd client. The client's lifecycle remains the caller's responsibility.
func NewEtcdStore(c *clientv3.Client, prefix string, stateExpiration time.Duration) *EtcdStore {
	return newEtcdStore(c, prefix, stateExpiration)
}

func newEtcdStore(kv etcdKV, prefix string, stateExpiration time.Duration) *EtcdStore {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	if stateExpiration <= 0 {
		stateExpiration = DefaultStateExpiration
	}
	return &EtcdStore{kv: kv, prefix: prefix, expiration: stateExpiration, now: time.Now}
}

func (s *EtcdStore) installationsDir(enterpriseID, teamID string, isEnterpriseInstall bool) string {
	e, t := teamKey(enterpriseID, teamID, isEnterpriseInstall)
	return path.Join(s.prefix, "installations", e+"-"+t)
}

func (s *EtcdStore) Save(ctx context.Context, i *Installation) error {
	i2 := *i
	if i2.InstalledAt.IsZero() {
		i2.InstalledAt = s.now().UTC()
	}
	if i2.IsEnterpriseInstall {
		i2.TeamID = ""
	}

	dir := s.installationsDir(i2.EnterpriseID, i2.TeamID, i2.IsEnterpriseInstall)
	if i2.BotToken != "" {
		if err := s.put(ctx, path.Join(dir, "bot-latest"), i2.Bot()); err != nil {
			return err
		}
	}
	if err := s.put(ctx, path.Join(dir, "installer-latest"), &i2); err != nil {
		return err
	}
	return s.put(ctx, path.Join(dir, fmt.Sprintf("installer-%s-latest", i2.UserID)), &i2)
}

func (s *EtcdStore) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	if _, err := s.kv.Put(ctx, key, string(b)); err != nil {
		return fmt.Errorf("failed to write %q to etcd: %w", key, err)
	}
	return nil
}

// get reports whether the key was found, and if so decodes its value into v.
func (s *EtcdStore) get(ctx context.Context, key string, v any) (bool, error) {
	resp, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %q from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(resp.Kvs[0].Value, v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (s *EtcdStore) FindBot(ctx context.Context, enterpriseID, teamID string, isEnterpriseInstall bool) (*Bot, error) {
	key := path.Join(s.installationsDir(enterpriseID, teamID, isEnterpriseInstall), "bot-latest")
	b := new(Bot)
	found, err := s.get(ctx, key, b)
	if err != nil || !found {
		return nil, err
	}
	return b, nil
}

func (s *EtcdStore) FindInstallation(ctx context.Context, enterpriseID, teamID, userID string, isEnterpriseInstall bool) (*Installation, error) {
	name := "installer-latest"
	if userID != "" {
		name = fmt.Sprintf("installer-%s-latest", userID)
	}

	key := path.Join(s.installationsDir(enterpriseID, teamID, isEnterpriseInstall), name)
	i := new(Installation)
	found, err := s.get(ctx, key, i)
	if err != nil || !found {
		return nil, err
	}
	return i, nil
}

func (s *EtcdStore) DeleteBot(ctx context.Context, enterpriseID, teamID string) error {
	key := path.Join(s.installationsDir(enterpriseID, teamID, false), "bot-latest")
	if _, err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %q from etcd: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) DeleteInstallation(ctx context.Context, enterpriseID, teamID, userID string) error {
	dir := s.installationsDir(enterpriseID, teamID, false)
	keys := []string{path.Join(dir, "installer-latest")}
	if userID != "" {
		keys = []string{path.Join(dir, fmt.Sprintf("installer-%s-latest", userID))}
		// Don't leave a dangling "latest" pointer to the deleted installer.
		if latest, err := s.FindInstallation(ctx, enterpriseID, teamID, "", false); err == nil && latest != nil && latest.UserID == userID {
			keys = append(keys, path.Join(dir, "installer-latest"))
		}
	}

	for _, key := range keys {
		if _, err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %q from etcd: %w", key, err)
		}
	}
	return nil
}

func (s *EtcdStore) Issue(ctx context.Context) (string, error) {
	lease, err := s.kv.Grant(ctx, int64(s.expiration.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to grant etcd lease: %w", err)
	}

	state := shortuuid.New()
	key := path.Join(s.prefix, "states", state)
	if _, err := s.kv.Put(ctx, key, s.now().UTC().Format(time.RFC3339), clientv3.WithLease(lease.ID)); err != nil {
		return "", fmt.Errorf("failed to write %q to etcd: %w", key, err)
	}

	return state, nil
}

// Consume deletes the state's key: the deletion count tells us atomically
// whether the state was valid (not already consumed, and not expired).
func (s *EtcdStore) Consume(ctx context.Context, state string) (bool, error) {
	key := path.Join(s.prefix, "states", state)
	resp, err := s.kv.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete %q from etcd: %w", key, err)
	}
	return resp.Deleted == 1, nil
}
