// Package outline реализует упорядоченный по индексу список узлов,
// из которого собирается двухуровневое дерево курса (модули и уроки).
package outline

import "sort"

// Node элемент списка
type Node interface {
	NodeID() string
	NodeIndex() int
}

// List список узлов, всегда отсортированный по индексу.
// При равных индексах сохраняется порядок вставки.
type List[T Node] []T

// Sort упорядочивает список по индексу
func (l List[T]) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		return l[i].NodeIndex() < l[j].NodeIndex()
	})
}

func (l List[T]) position(id string) int {
	for i := range l {
		if l[i].NodeID() == id {
			return i
		}
	}
	return -1
}

// Find возвращает указатель на узел или nil
func (l List[T]) Find(id string) *T {
	if i := l.position(id); i >= 0 {
		return &l[i]
	}
	return nil
}

// Contains проверяет наличие узла
func (l List[T]) Contains(id string) bool {
	return l.position(id) >= 0
}

// Insert добавляет узел или заменяет узел с тем же id
func (l *List[T]) Insert(node T) {
	if i := l.position(node.NodeID()); i >= 0 {
		(*l)[i] = node
	} else {
		*l = append(*l, node)
	}
	l.Sort()
}

// Update изменяет узел на месте. Возвращает false, если узла нет.
func (l List[T]) Update(id string, fn func(node *T)) bool {
	i := l.position(id)
	if i < 0 {
		return false
	}
	before := l[i].NodeIndex()
	fn(&l[i])
	if l[i].NodeIndex() != before {
		l.Sort()
	}
	return true
}

// Remove удаляет узел. Возвращает false, если узла нет.
func (l *List[T]) Remove(id string) bool {
	i := l.position(id)
	if i < 0 {
		return false
	}
	*l = append((*l)[:i], (*l)[i+1:]...)
	return true
}

// IDs возвращает идентификаторы в порядке списка
func (l List[T]) IDs() []string {
	ids := make([]string, len(l))
	for i := range l {
		ids[i] = l[i].NodeID()
	}
	return ids
}
