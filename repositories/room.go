//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/heaming/zipper-sub001/domain"
	apperrors "github.com/heaming/zipper-sub001/errors"
)

type IRoomRepository interface {
	Get(roomID domain.RoomID) (domain.Room, error)
	List() ([]domain.Room, error)
	Save(room domain.Room) error
}

// RoomRepository is the directory of rooms. The messaging core only
// reads it; writes happen through the administrative flow (roomctl).
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

type roomRecord struct {
	ID           string          `json:"id"`
	Type         domain.RoomType `json:"type"`
	Name         string          `json:"name"`
	LinkedPostID *string         `json:"linked_post_id,omitempty"`
}

func (r *RoomRepository) Get(roomID domain.RoomID) (domain.Room, error) {
	var rec roomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &rec)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return domain.Room{}, fmt.Errorf("%w: %s", apperrors.ErrRoomNotFound, roomID)
		}
		return domain.Room{}, err
	}
	return toRoom(rec), nil
}

func (r *RoomRepository) List() ([]domain.Room, error) {
	var rooms []domain.Room
	prefix := []byte("room:")
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec roomRecord
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &rec)
			}); err != nil {
				return err
			}
			rooms = append(rooms, toRoom(rec))
		}
		return nil
	})
	return rooms, err
}

func (r *RoomRepository) Save(room domain.Room) error {
	bytes, err := json.Marshal(roomRecord{
		ID:           string(room.ID),
		Type:         room.Type,
		Name:         room.Name,
		LinkedPostID: room.LinkedPostID,
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), bytes)
	})
}

func roomKey(roomID domain.RoomID) []byte {
	return []byte("room:" + string(roomID))
}

func toRoom(rec roomRecord) domain.Room {
	return domain.Room{
		ID:           domain.RoomID(rec.ID),
		Type:         rec.Type,
		Name:         rec.Name,
		LinkedPostID: rec.LinkedPostID,
	}
}
