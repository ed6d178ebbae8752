package storage

import (
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx exposes the operations allowed inside a single-collection transaction.
type Tx struct {
	db   *gorm.DB
	def  collectionDef
	mode Mode
}

// Collection returns the collection the transaction is bound to.
func (tx *Tx) Collection() Collection {
	return tx.def.name
}

func (tx *Tx) checkRecord(v any) error {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem() != tx.def.typ {
		return fmt.Errorf("%w: %T in %s", ErrWrongCollection, v, tx.def.name)
	}
	return nil
}

func (tx *Tx) checkSlice(v any) error {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Slice || t.Elem().Elem() != tx.def.typ {
		return fmt.Errorf("%w: %T in %s", ErrWrongCollection, v, tx.def.name)
	}
	return nil
}

func (tx *Tx) checkWritable() error {
	if tx.mode != ReadWrite {
		return fmt.Errorf("%w: %s", ErrReadOnly, tx.def.name)
	}
	return nil
}

func eq(column string, value any) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: column}, Value: value}
}

func asc(column string) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: column}}
}

// Get loads the record with the given primary key into dest.
func (tx *Tx) Get(key any, dest any) error {
	if err := tx.checkRecord(dest); err != nil {
		return err
	}
	err := tx.db.Where(eq(tx.def.key, key)).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, tx.def.name, key)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s %v: %w", tx.def.name, key, err)
	}
	return nil
}

// GetAll loads every record ordered by primary key.
func (tx *Tx) GetAll(dest any) error {
	if err := tx.checkSlice(dest); err != nil {
		return err
	}
	if err := tx.db.Order(asc(tx.def.key)).Find(dest).Error; err != nil {
		return fmt.Errorf("failed to get all %s: %w", tx.def.name, err)
	}
	return nil
}

// GetAllByIndex loads the records whose indexed field equals value.
func (tx *Tx) GetAllByIndex(index string, value any, dest any) error {
	column, ok := tx.def.indices[index]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownIndex, tx.def.name, index)
	}
	if err := tx.checkSlice(dest); err != nil {
		return err
	}
	if err := tx.db.Where(eq(column, value)).Order(asc(tx.def.key)).Find(dest).Error; err != nil {
		return fmt.Errorf("failed to get %s by %s: %w", tx.def.name, index, err)
	}
	return nil
}

// Put inserts the record or replaces the existing one with the same key.
func (tx *Tx) Put(record any) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := tx.checkRecord(record); err != nil {
		return err
	}
	if err := tx.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
		return fmt.Errorf("failed to put %s: %w", tx.def.name, err)
	}
	return nil
}

// Add inserts the record and fails if the key already exists.
func (tx *Tx) Add(record any) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := tx.checkRecord(record); err != nil {
		return err
	}
	if err := tx.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to add %s: %w", tx.def.name, err)
	}
	return nil
}

// Delete removes the record with the given key. Deleting a missing key is not an error.
func (tx *Tx) Delete(key any) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := tx.db.Where(eq(tx.def.key, key)).Delete(tx.def.newRecord()).Error; err != nil {
		return fmt.Errorf("failed to delete %s %v: %w", tx.def.name, key, err)
	}
	return nil
}

// Clear removes every record of the collection.
func (tx *Tx) Clear() error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := tx.db.Where("1 = 1").Delete(tx.def.newRecord()).Error; err != nil {
		return fmt.Errorf("failed to clear %s: %w", tx.def.name, err)
	}
	return nil
}

// Count returns the number of records.
func (tx *Tx) Count() (int64, error) {
	var n int64
	if err := tx.db.Model(tx.def.newRecord()).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", tx.def.name, err)
	}
	return n, nil
}
