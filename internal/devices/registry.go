// Package devices keeps the registry of IoT devices that announced themselves
// to the gateway. Entries expire when a device stops re-registering.
package devices

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

// DefaultTTL is used when the registry is created with a zero TTL.
const DefaultTTL = 5 * time.Minute

// Type is the kind of device.
type Type string

const (
	TypeCamera     Type = "camera"
	TypeSensor     Type = "sensor"
	TypeController Type = "controller"
)

// Status values reported for a device.
const (
	StatusOnline = "online"
)

// ParseType validates s as a device type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeCamera, TypeSensor, TypeController:
		return t, nil
	default:
		return "", validationError(fmt.Sprintf("unknown device type %q", s), "type")
	}
}

// Registration is what a device sends when it announces itself.
type Registration struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`
	IP       string `json:"ip"`
}

// Device is a registered device.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	IP        string    `json:"ip"`
	Status    string    `json:"status"`
	StreamURL string    `json:"streamUrl,omitempty"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Registry is safe for concurrent use.
type Registry struct {
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
	log   logger.Logger
}

// NewRegistry returns an empty registry whose entries live for ttl after
// their last registration.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
		now:   time.Now,
		log:   GetLogger(),
	}
}

// Register validates reg and adds or refreshes the device.
func (r *Registry) Register(reg Registration) (Device, error) {
	id := strings.TrimSpace(reg.DeviceID)
	if id == "" {
		return Device{}, validationError("deviceId is required", "deviceId")
	}
	typ, err := ParseType(reg.Type)
	if err != nil {
		return Device{}, err
	}
	ip := strings.TrimSpace(reg.IP)
	if net.ParseIP(ip) == nil {
		return Device{}, validationError(fmt.Sprintf("invalid ip address %q", reg.IP), "ip")
	}

	name := strings.TrimSpace(reg.Name)
	if name == "" {
		name = id
	}
	d := Device{
		ID:       id,
		Name:     name,
		Type:     typ,
		IP:       ip,
		Status:   StatusOnline,
		LastSeen: r.now(),
	}
	if typ == TypeCamera {
		d.StreamURL = streamURL(ip)
	}

	_, existed := r.cache.Get(id)
	r.cache.Set(id, d, cache.DefaultExpiration)
	if !existed {
		r.log.Info("device registered",
			logger.String("device_id", id),
			logger.String("type", string(typ)),
			logger.String("ip", ip))
	}
	return d, nil
}

// Get returns the device with id.
func (r *Registry) Get(id string) (Device, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return Device{}, false
	}
	return v.(Device), true
}

// List returns live devices ordered by ID.
func (r *Registry) List() []Device {
	items := r.cache.Items()
	out := make([]Device, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Device))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove drops the device with id.
func (r *Registry) Remove(id string) {
	r.cache.Delete(id)
}

// Clear drops every device.
func (r *Registry) Clear() {
	r.cache.Flush()
}

// Count returns the number of live devices.
func (r *Registry) Count() int {
	return r.cache.ItemCount()
}

func streamURL(ip string) string {
	host := ip
	if strings.Contains(ip, ":") {
		host = "[" + ip + "]"
	}
	return "http://" + host + "/stream"
}

func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("devices").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
