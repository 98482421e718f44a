// Package compositor merges the live capture tracks of a session into one
// recordable stream.
//
// A fixed-rate ticker (30 frames per second, independent of any display
// refresh) calls PushFrame, which stretches the latest screen frame over the
// whole surface and, when a camera is present, draws a mirrored circular
// camera bubble in the bottom-left corner followed by a ring stroke. The
// surface size is locked to the screen's negotiated resolution when the
// compositor starts.
//
// Drawing goes through the Surface interface. GGSurface renders with the
// gogpu/gg 2D context; tests substitute a recorder of draw calls.
//
// Audio is mixed by a MixGraph: the screen's system audio and the microphone
// (each optional) are summed into a single destination track. With no inputs
// the output stream carries no audio.
//
// Stop tears the ticker and the mix graph down synchronously and is safe to
// call more than once. ActiveTimers and OpenMixGraphs report process-wide
// counts so callers can assert nothing was leaked.
package compositor
