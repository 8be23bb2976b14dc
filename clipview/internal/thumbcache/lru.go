package thumbcache

import "container/list"

// lru is a count-bounded recency list. It is not safe for concurrent use;
// Cache holds its mutex around every call.
type lru struct {
	size      int // 0 means unbounded
	evictList *list.List
	items     map[int64]*list.Element
}

type entry struct {
	key   int64
	value string
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		items:     make(map[int64]*list.Element),
	}
}

func (c *lru) get(key int64) (string, bool) {
	if ele, hit := c.items[key]; hit {
		c.evictList.MoveToFront(ele)
		return ele.Value.(*entry).value, true
	}
	return "", false
}

// put stores value under key and reports how many entries were evicted.
func (c *lru) put(key int64, value string) int {
	if ele, hit := c.items[key]; hit {
		c.evictList.MoveToFront(ele)
		ele.Value.(*entry).value = value
		return 0
	}

	ele := c.evictList.PushFront(&entry{key, value})
	c.items[key] = ele

	evicted := 0
	for c.size > 0 && c.evictList.Len() > c.size {
		c.removeOldest()
		evicted++
	}
	return evicted
}

func (c *lru) remove(key int64) bool {
	if ele, hit := c.items[key]; hit {
		c.removeElement(ele)
		return true
	}
	return false
}

func (c *lru) len() int { return c.evictList.Len() }

func (c *lru) removeOldest() {
	ele := c.evictList.Back()
	if ele != nil {
		c.removeElement(ele)
	}
}

func (c *lru) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(c.items, kv.key)
}
