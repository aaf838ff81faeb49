package projection

import (
	"sync"
	"time"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
)

// ParkingConfig конфигурация буфера событий, пришедших раньше создания цели
type ParkingConfig struct {
	Enabled   bool
	MaxPerKey int
	MaxTotal  int
	TTL       time.Duration
}

// DefaultParkingConfig возвращает конфигурацию по умолчанию (выключено)
func DefaultParkingConfig() ParkingConfig {
	return ParkingConfig{
		Enabled:   false,
		MaxPerKey: 32,
		MaxTotal:  10000,
		TTL:       10 * time.Minute,
	}
}

// ErrParkingFull код ошибки переполнения parking lot
const ErrParkingFull = "PARKING_FULL"

// Parked событие, ожидающее появления сущности
type Parked struct {
	Consumer string
	Event    events.Event
	ParkedAt time.Time
}

// ParkingLot ограниченный буфер событий, сгруппированных по id отсутствующей сущности
type ParkingLot struct {
	config ParkingConfig
	mu     sync.Mutex
	byKey  map[string][]Parked
	total  int
	now    func() time.Time
}

// NewParkingLot создает parking lot
func NewParkingLot(config ParkingConfig) *ParkingLot {
	return &ParkingLot{
		config: config,
		byKey:  make(map[string][]Parked),
		now:    time.Now,
	}
}

// Park откладывает событие до появления сущности key.
// Возвращает количество вытесненных по TTL записей.
func (p *ParkingLot) Park(key, consumer string, event events.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	expired := 0
	if p.config.MaxTotal > 0 && p.total >= p.config.MaxTotal {
		expired = p.expireLocked()
	}
	if p.config.MaxTotal > 0 && p.total >= p.config.MaxTotal {
		return expired, core.Errorf(ErrParkingFull, "parking lot is full (%d events)", p.total)
	}
	if p.config.MaxPerKey > 0 && len(p.byKey[key]) >= p.config.MaxPerKey {
		return expired, core.Errorf(ErrParkingFull, "parking lot is full for %s", key)
	}

	p.byKey[key] = append(p.byKey[key], Parked{
		Consumer: consumer,
		Event:    event,
		ParkedAt: p.now(),
	})
	p.total++
	return expired, nil
}

// Release забирает события, ожидавшие сущность key, в порядке поступления.
// Второе значение: количество записей, отброшенных по TTL.
func (p *ParkingLot) Release(key string) ([]Parked, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, ok := p.byKey[key]
	if !ok {
		return nil, 0
	}
	delete(p.byKey, key)
	p.total -= len(entries)

	live := entries[:0]
	expired := 0
	for _, e := range entries {
		if p.isExpired(e) {
			expired++
			continue
		}
		live = append(live, e)
	}
	return live, expired
}

// Expire удаляет просроченные записи и возвращает их количество
func (p *ParkingLot) Expire() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expireLocked()
}

func (p *ParkingLot) expireLocked() int {
	if p.config.TTL <= 0 {
		return 0
	}
	removed := 0
	for key, entries := range p.byKey {
		live := entries[:0]
		for _, e := range entries {
			if p.isExpired(e) {
				removed++
				continue
			}
			live = append(live, e)
		}
		if len(live) == 0 {
			delete(p.byKey, key)
		} else {
			p.byKey[key] = live
		}
	}
	p.total -= removed
	return removed
}

func (p *ParkingLot) isExpired(e Parked) bool {
	return p.config.TTL > 0 && p.now().Sub(e.ParkedAt) > p.config.TTL
}

// Len возвращает общее количество отложенных событий
func (p *ParkingLot) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
