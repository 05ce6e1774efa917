// Package supervisor launches and oversees the deployment's worker
// processes: the queue-scoped task worker group with its singleton
// scheduler, and the HTTP serving pool master that recycles workers
// behind one listening socket.
//
// The scheduling model is pure OS-process parallelism. The supervisor
// never waits on task completion; spawn, signal delivery, and bounded
// waits during shutdown are its only blocking operations.
package supervisor
