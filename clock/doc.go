/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package clock wraps the CLOCK_ADJTIME syscall used to steer CLOCK_REALTIME:
reading and adjusting frequency (FrequencyPPB, AdjFreqPPB), stepping by an
offset (Step), querying the clock's maximum frequency adjustment
(MaxFreqPPB), and the raw Adjtime call they're all built on.

SystemClock, in localclock.go, wraps these into the reftrack.LocalClock
interface the reference tracking core drives; TimerScheduler, in
scheduler.go, provides the one-shot timers the fallback drift ladder needs.
*/
package clock
