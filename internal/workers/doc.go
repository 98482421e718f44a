/*
Package workers sizes CPU-bound work for the machine it runs on.

Counts are derived from runtime.GOMAXPROCS(0) rather than runtime.NumCPU(),
so a container limited to 2 cores on a 64-core host gets 2, not 64.

	threads := workers.EncoderThreads() // half the CPUs, 1..8

Every helper takes the name of an environment variable that, when set to a
positive integer, replaces the computed value:

	ENCODER_THREADS=2 recorder
*/
package workers
