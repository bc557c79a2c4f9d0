package sample

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// Seed values. Every new resource starts with one account whose creation
// is pending in the change log at SeedToken.
const (
	SeedUid   = "3f50eca0-f5e9-11e3-a3ac-0800200c9a66"
	SeedName  = "foo.bar"
	SeedToken = int64(10)
)

type record struct {
	uid      string
	name     string
	attrs    []objects.Attribute
	password *security.GuardedString
}

type change struct {
	token       int64
	deltaType   objects.SyncDeltaType
	oc          objects.ObjectClass
	uid         string
	previousUid string
	object      *objects.ConnectorObject
}

// Resource is an in-memory identity store shared by every connector
// instance configured with the same host.
type Resource struct {
	host string

	mu        sync.RWMutex
	online    bool
	classes   map[string]map[string]*record
	changes   []change
	lastToken int64
}

func newResource(host string) *Resource {
	r := &Resource{
		host:    host,
		online:  true,
		classes: make(map[string]map[string]*record),
	}
	r.seed()
	return r
}

func (r *Resource) seed() {
	rec := &record{
		uid:  SeedUid,
		name: SeedName,
		attrs: []objects.Attribute{
			objects.NewAttribute("firstName", "Foo"),
			objects.NewAttribute("lastName", "Bar"),
			objects.NewAttribute(objects.EnableAttr, true),
		},
	}
	r.table(objects.Account)[rec.uid] = rec
	r.lastToken = SeedToken - 1
	r.logChange(objects.SyncDeltaCreate, objects.Account, rec, "")
}

// Host returns the resource name.
func (r *Resource) Host() string { return r.host }

// SetOnline toggles reachability; an offline resource fails Ping.
func (r *Resource) SetOnline(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = online
}

// Ping fails with ErrorTypeConnection when the resource is offline.
func (r *Resource) Ping() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.online {
		return errors.New(errors.ErrorTypeConnection, fmt.Sprintf("resource %s is unreachable", r.host)).
			WithDetail("host", r.host)
	}
	return nil
}

// Count returns the number of objects of class oc.
func (r *Resource) Count(oc objects.ObjectClass) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes[oc.Key()])
}

// Get returns the object with uid.
func (r *Resource) Get(oc objects.ObjectClass, uid string) (*objects.ConnectorObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.classes[oc.Key()][uid]
	if !ok {
		return nil, false
	}
	return rec.object(oc), true
}

// List returns every object of class oc ordered by uid.
func (r *Resource) List(oc objects.ObjectClass) []*objects.ConnectorObject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := r.classes[oc.Key()]
	uids := make([]string, 0, len(table))
	for uid := range table {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	out := make([]*objects.ConnectorObject, 0, len(uids))
	for _, uid := range uids {
		out = append(out, table[uid].object(oc))
	}
	return out
}

// FindByName returns the uid of the object named name, ignoring case.
// Names are unique per class.
func (r *Resource) FindByName(oc objects.ObjectClass, name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.uidByName(oc, name)
}

// uidByName scans class oc for name. Callers hold the lock.
func (r *Resource) uidByName(oc objects.ObjectClass, name string) (string, bool) {
	for uid, rec := range r.classes[oc.Key()] {
		if strings.EqualFold(rec.name, name) {
			return uid, true
		}
	}
	return "", false
}

// Insert stores a new object.
func (r *Resource) Insert(oc objects.ObjectClass, uid, name string, attrs []objects.Attribute, password *security.GuardedString) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.table(oc)
	if _, exists := table[uid]; exists {
		return errors.New(errors.ErrorTypeAlreadyExists, fmt.Sprintf("%s %s already exists", oc, uid)).
			WithDetail("uid", uid).
			WithDetail("object_class", oc.Name())
	}
	if _, taken := r.uidByName(oc, name); taken {
		return nameTaken(oc, name)
	}
	rec := &record{uid: uid, name: name, attrs: copyAttrs(attrs), password: password}
	table[uid] = rec
	r.logChange(objects.SyncDeltaCreate, oc, rec, "")
	return nil
}

// Modify applies fn to the object with uid. When fn changes the record's
// uid the object is re-keyed; a collision is ErrorTypeAlreadyExists.
func (r *Resource) Modify(oc objects.ObjectClass, uid string, fn func(rec *record) error) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.classes[oc.Key()]
	rec, ok := table[uid]
	if !ok {
		return "", unknownUid(oc, uid)
	}

	updated := &record{uid: rec.uid, name: rec.name, attrs: copyAttrs(rec.attrs), password: rec.password}
	if err := fn(updated); err != nil {
		return "", err
	}

	if !strings.EqualFold(updated.name, rec.name) {
		if _, taken := r.uidByName(oc, updated.name); taken {
			return "", nameTaken(oc, updated.name)
		}
	}

	previous := ""
	if updated.uid != uid {
		if _, exists := table[updated.uid]; exists {
			return "", errors.New(errors.ErrorTypeAlreadyExists, fmt.Sprintf("%s %s already exists", oc, updated.uid)).
				WithDetail("uid", updated.uid).
				WithDetail("object_class", oc.Name())
		}
		delete(table, uid)
		previous = uid
	}
	table[updated.uid] = updated
	r.logChange(objects.SyncDeltaUpdate, oc, updated, previous)
	return updated.uid, nil
}

// Remove deletes the object with uid.
func (r *Resource) Remove(oc objects.ObjectClass, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.classes[oc.Key()]
	rec, ok := table[uid]
	if !ok {
		return unknownUid(oc, uid)
	}
	delete(table, uid)
	r.logChange(objects.SyncDeltaDelete, oc, rec, "")

	// drop memberships pointing at the removed object
	other, attr := objects.Group, objects.MembersAttr
	if oc.Equals(objects.Group) {
		other, attr = objects.Account, objects.GroupsAttr
	}
	for _, peer := range r.classes[other.Key()] {
		removeValue(peer, attr, uid)
	}
	return nil
}

// CheckPassword reports whether password matches the account with uid.
func (r *Resource) CheckPassword(uid string, password *security.GuardedString) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.classes[objects.Account.Key()][uid]
	if !ok || rec.password == nil {
		return false
	}
	return rec.password.Equals(password)
}

// AddMember makes account a member of group. Membership is maintained by
// the resource; both sides are read-only to connectors.
func (r *Resource) AddMember(groupUid, accountUid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.classes[objects.Group.Key()][groupUid]
	if !ok {
		return unknownUid(objects.Group, groupUid)
	}
	account, ok := r.classes[objects.Account.Key()][accountUid]
	if !ok {
		return unknownUid(objects.Account, accountUid)
	}
	addValue(group, objects.MembersAttr, accountUid)
	addValue(account, objects.GroupsAttr, groupUid)
	r.logChange(objects.SyncDeltaUpdate, objects.Group, group, "")
	r.logChange(objects.SyncDeltaUpdate, objects.Account, account, "")
	return nil
}

// changesAfter returns the changes to class oc with a token above after, or all
// of them when hasAfter is false.
func (r *Resource) changesAfter(oc objects.ObjectClass, after int64, hasAfter bool) []change {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []change
	for _, c := range r.changes {
		if hasAfter && c.token <= after {
			continue
		}
		if !c.oc.Equals(oc) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LatestToken returns the token of the last change.
func (r *Resource) LatestToken() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastToken
}

// lookup renders an object as a plain map for scripts.
func (r *Resource) lookup(oc objects.ObjectClass, uid string) map[string]interface{} {
	obj, ok := r.Get(oc, uid)
	if !ok {
		return nil
	}
	out := make(map[string]interface{})
	for _, a := range obj.Attributes() {
		if len(a.Values) == 1 {
			out[a.Name] = a.Values[0]
		} else {
			out[a.Name] = a.Values
		}
	}
	return out
}

func (r *Resource) table(oc objects.ObjectClass) map[string]*record {
	t, ok := r.classes[oc.Key()]
	if !ok {
		t = make(map[string]*record)
		r.classes[oc.Key()] = t
	}
	return t
}

// logChange appends to the change log. Callers hold the write lock.
func (r *Resource) logChange(dt objects.SyncDeltaType, oc objects.ObjectClass, rec *record, previousUid string) {
	r.lastToken++
	c := change{
		token:       r.lastToken,
		deltaType:   dt,
		oc:          oc,
		uid:         rec.uid,
		previousUid: previousUid,
	}
	if dt != objects.SyncDeltaDelete {
		c.object = rec.object(oc)
	}
	r.changes = append(r.changes, c)
}

func (rec *record) object(oc objects.ObjectClass) *objects.ConnectorObject {
	obj, err := objects.NewConnectorObjectBuilder().
		SetObjectClass(oc).
		SetUid(objects.NewUid(rec.uid)).
		SetName(rec.name).
		AddAttributes(rec.attrs...).
		Build()
	if err != nil {
		// records always carry uid, name and class
		panic(err)
	}
	return obj
}

func addValue(rec *record, name string, value string) {
	attr, _ := objects.Find(rec.attrs, name)
	for _, v := range attr.Values {
		if v == value {
			return
		}
	}
	values := append(append([]interface{}{}, attr.Values...), value)
	rec.attrs = append(objects.Without(rec.attrs, name), objects.NewAttribute(name, values...))
}

func removeValue(rec *record, name string, value string) {
	attr, ok := objects.Find(rec.attrs, name)
	if !ok {
		return
	}
	var values []interface{}
	for _, v := range attr.Values {
		if v != value {
			values = append(values, v)
		}
	}
	rec.attrs = objects.Without(rec.attrs, name)
	if len(values) > 0 {
		rec.attrs = append(rec.attrs, objects.NewAttribute(name, values...))
	}
}

func copyAttrs(attrs []objects.Attribute) []objects.Attribute {
	out := make([]objects.Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = objects.NewAttribute(a.Name, a.Values...)
	}
	return out
}

func nameTaken(oc objects.ObjectClass, name string) error {
	return errors.New(errors.ErrorTypeAlreadyExists, fmt.Sprintf("%s named %s already exists", oc, name)).
		WithDetail("name", name).
		WithDetail("object_class", oc.Name())
}

func unknownUid(oc objects.ObjectClass, uid string) error {
	return errors.New(errors.ErrorTypeUnknownUid, fmt.Sprintf("%s %s does not exist", oc, uid)).
		WithDetail("uid", uid).
		WithDetail("object_class", oc.Name())
}

// Directory maps hosts to resources.
type Directory struct {
	mu        sync.Mutex
	resources map[string]*Resource
}

var defaultDirectory = NewDirectory()

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{resources: make(map[string]*Resource)}
}

// DefaultDirectory returns the process-wide directory connectors use.
func DefaultDirectory() *Directory { return defaultDirectory }

// Open returns the resource for host, creating a seeded one on first use.
func (d *Directory) Open(host string) *Resource {
	key := strings.ToLower(host)

	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.resources[key]
	if !ok {
		r = newResource(host)
		d.resources[key] = r
	}
	return r
}

// Drop forgets the resource for host.
func (d *Directory) Drop(host string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.resources, strings.ToLower(host))
}
