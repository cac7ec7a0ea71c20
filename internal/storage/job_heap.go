package storage

import (
	"container/heap"

	"github.com/listing-trust/internal/models"
)

// queueItem is a pending job in the heap
type queueItem struct {
	job   *models.CollectionJob
	index int
}

// pendingQueue implements heap.Interface over pending jobs, lowest priority
// value first, then oldest, then smallest id
type pendingQueue []*queueItem

func (pq pendingQueue) Len() int { return len(pq) }

func (pq pendingQueue) Less(i, j int) bool {
	return jobLess(pq[i].job, pq[j].job)
}

func (pq pendingQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pendingQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pendingQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// pendingIndex pairs the heap with an id lookup so jobs leaving the pending
// state can be removed in O(log n)
type pendingIndex struct {
	queue pendingQueue
	byID  map[string]*queueItem
}

func newPendingIndex() *pendingIndex {
	return &pendingIndex{byID: make(map[string]*queueItem)}
}

func (p *pendingIndex) push(job *models.CollectionJob) {
	if _, ok := p.byID[job.ID]; ok {
		return
	}
	item := &queueItem{job: job}
	heap.Push(&p.queue, item)
	p.byID[job.ID] = item
}

func (p *pendingIndex) pop() *models.CollectionJob {
	if p.queue.Len() == 0 {
		return nil
	}
	item := heap.Pop(&p.queue).(*queueItem)
	delete(p.byID, item.job.ID)
	return item.job
}

func (p *pendingIndex) remove(id string) {
	item, ok := p.byID[id]
	if !ok {
		return
	}
	heap.Remove(&p.queue, item.index)
	delete(p.byID, id)
}

func (p *pendingIndex) len() int {
	return p.queue.Len()
}
