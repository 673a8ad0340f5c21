//go:build android

// Package jni is the only package in this module that talks to a live JVM.
// It wraps loader's host-runtime-independent logic with the three FFI entry
// points Android calls into, process-wide idempotence, the JNI_OnLoad
// debugger probe, and the class-loader splice itself. Nothing here is
// unit-testable off-device — a real JNIEnv is required — so this package
// carries no *_test.go; loader's tests cover everything reachable without a
// JVM.
package jni

/*
#cgo LDFLAGS: -llog

#include <jni.h>
#include <android/log.h>
#include <stdlib.h>

static jobject jni_call_object_method0(JNIEnv *env, jobject obj, const char *name, const char *sig) {
    jclass cls = (*env)->GetObjectClass(env, obj);
    if (cls == NULL) return NULL;
    jmethodID mid = (*env)->GetMethodID(env, cls, name, sig);
    (*env)->DeleteLocalRef(env, cls);
    if (mid == NULL) return NULL;
    return (*env)->CallObjectMethod(env, obj, mid);
}

static jobject jni_get_field_object(JNIEnv *env, jobject obj, const char *name, const char *sig) {
    jclass cls = (*env)->GetObjectClass(env, obj);
    if (cls == NULL) return NULL;
    jfieldID fid = (*env)->GetFieldID(env, cls, name, sig);
    (*env)->DeleteLocalRef(env, cls);
    if (fid == NULL) return NULL;
    return (*env)->GetObjectField(env, obj, fid);
}

static void jni_set_field_object(JNIEnv *env, jobject obj, const char *name, const char *sig, jobject value) {
    jclass cls = (*env)->GetObjectClass(env, obj);
    if (cls == NULL) return;
    jfieldID fid = (*env)->GetFieldID(env, cls, name, sig);
    (*env)->DeleteLocalRef(env, cls);
    if (fid == NULL) return;
    (*env)->SetObjectField(env, obj, fid, value);
}

static jint jni_array_length(JNIEnv *env, jobjectArray arr) {
    return (*env)->GetArrayLength(env, arr);
}

static jobject jni_array_get(JNIEnv *env, jobjectArray arr, jint idx) {
    return (*env)->GetObjectArrayElement(env, arr, idx);
}

static void jni_array_set(JNIEnv *env, jobjectArray arr, jint idx, jobject val) {
    (*env)->SetObjectArrayElement(env, arr, idx, val);
}

static jobjectArray jni_new_object_array(JNIEnv *env, jint len, jclass elemClass) {
    return (*env)->NewObjectArray(env, len, elemClass, NULL);
}

static jclass jni_find_class(JNIEnv *env, const char *name) {
    return (*env)->FindClass(env, name);
}

static jmethodID jni_find_ctor(JNIEnv *env, jclass cls, const char *sig) {
    return (*env)->GetMethodID(env, cls, "<init>", sig);
}

static jobject jni_new_object4(JNIEnv *env, jclass cls, jmethodID mid,
                                jobject a0, jobject a1, jobject a2, jobject a3) {
    return (*env)->NewObject(env, cls, mid, a0, a1, a2, a3);
}

static jstring jni_new_string_utf(JNIEnv *env, const char *s) {
    return (*env)->NewStringUTF(env, s);
}

static jclass jni_get_object_class(JNIEnv *env, jobject obj) {
    return (*env)->GetObjectClass(env, obj);
}

// jni_find_method probes cls for a method without letting a missing method
// raise NoSuchMethodError into the caller: GetMethodID throws on failure, so
// any pending exception from a negative probe is cleared before returning.
static jmethodID jni_find_method(JNIEnv *env, jclass cls, const char *name, const char *sig) {
    jmethodID mid = (*env)->GetMethodID(env, cls, name, sig);
    if (mid == NULL) {
        (*env)->ExceptionClear(env);
    }
    return mid;
}

static jobject jni_new_object0(JNIEnv *env, jclass cls, jmethodID mid) {
    return (*env)->NewObject(env, cls, mid);
}

static void jni_call_void_method1_string(JNIEnv *env, jobject obj, jmethodID mid, jstring arg) {
    (*env)->CallVoidMethod(env, obj, mid, arg);
}

static void jni_call_void_method_string_bool(JNIEnv *env, jobject obj, jmethodID mid, jstring arg, jboolean b) {
    (*env)->CallVoidMethod(env, obj, mid, arg, b);
}

static void jni_call_void_method1_object(JNIEnv *env, jobject obj, jmethodID mid, jobject arg) {
    (*env)->CallVoidMethod(env, obj, mid, arg);
}

static jboolean jni_call_bool_method1_object(JNIEnv *env, jobject obj, jmethodID mid, jobject arg) {
    return (*env)->CallBooleanMethod(env, obj, mid, arg);
}

static jobject jni_call_object_method1_string_int(JNIEnv *env, jobject obj, const char *name, const char *sig, jstring arg0, jint arg1) {
    jclass cls = (*env)->GetObjectClass(env, obj);
    if (cls == NULL) return NULL;
    jmethodID mid = (*env)->GetMethodID(env, cls, name, sig);
    (*env)->DeleteLocalRef(env, cls);
    if (mid == NULL) return NULL;
    return (*env)->CallObjectMethod(env, obj, mid, arg0, arg1);
}

static jsize jni_bytearray_length(JNIEnv *env, jbyteArray arr) {
    return (*env)->GetArrayLength(env, arr);
}

static void jni_bytearray_get_region(JNIEnv *env, jbyteArray arr, jsize start, jsize len, jbyte *buf) {
    (*env)->GetByteArrayRegion(env, arr, start, len, buf);
}

static const char *jni_get_string_utf_chars(JNIEnv *env, jstring s) {
    return (*env)->GetStringUTFChars(env, s, NULL);
}

static void jni_release_string_utf_chars(JNIEnv *env, jstring s, const char *chars) {
    (*env)->ReleaseStringUTFChars(env, s, chars);
}

static void jni_exception_clear(JNIEnv *env) {
    (*env)->ExceptionClear(env);
}

static jboolean jni_exception_check(JNIEnv *env) {
    return (*env)->ExceptionCheck(env);
}

static void log_info(const char *tag, const char *msg) {
    __android_log_write(ANDROID_LOG_INFO, tag, msg);
}

static void log_warn(const char *tag, const char *msg) {
    __android_log_write(ANDROID_LOG_WARN, tag, msg);
}
*/
import "C"

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"unsafe"

	libloader "github.com/kapp-shell/kappshell/loader"
	"github.com/kapp-shell/kappshell/obfuscate"
)

// loaded guards every entry point against running the splice twice in one
// process lifetime — the three entry points (Application.onCreate,
// AppInfo-based cold path, ContentProvider.onCreate) can all fire for the
// same process depending on which Android version and component structure
// the host app uses, but the dex/native-lib landing and class-loader splice
// must only ever happen once.
var loaded atomic.Bool

func androidLogger(tag string) *log.Logger {
	cTag := C.CString(tag)
	defer C.free(unsafe.Pointer(cTag))
	return log.New(writerFunc(func(p []byte) (int, error) {
		cMsg := C.CString(string(p))
		C.log_info(cTag, cMsg)
		C.free(unsafe.Pointer(cMsg))
		return len(p), nil
	}), "", 0)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

//export JNI_OnLoad
func JNI_OnLoad(vm *C.JavaVM, reserved unsafe.Pointer) C.jint {
	cTag := C.CString(logTag)
	defer C.free(unsafe.Pointer(cTag))

	if isDebuggerAttached() {
		cMsg := C.CString("debugger detected at load time, aborting")
		C.log_warn(cTag, cMsg)
		C.free(unsafe.Pointer(cMsg))
		os.Exit(1)
	}

	cMsg := C.CString("native library loaded")
	C.log_info(cTag, cMsg)
	C.free(unsafe.Pointer(cMsg))

	return C.JNI_VERSION_1_6
}

// isDebuggerAttached reads /proc/self/status looking for a positive
// TracerPid. PTRACE_TRACEME is intentionally not attempted here: on a
// process that is not already being traced it would succeed and makes the
// process untraceable for the rest of its life, which is unwanted for a
// library meant to keep running after the check passes — the TracerPid read
// alone is the non-destructive half of that probe.
func isDebuggerAttached() bool {
	data, err := os.ReadFile(obfuscate.Decode(obfuscate.IDProcStatusPath))
	if err != nil {
		return false
	}
	prefix := obfuscate.Decode(obfuscate.IDTracerPidPrefix)
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return false
		}
		var pid int
		if _, err := fmt.Sscanf(fields[1], "%d", &pid); err != nil {
			return false
		}
		return pid > 0
	}
	return false
}

//export Java_com_kappshell_ShellApplication_nativeLoadDex
func Java_com_kappshell_ShellApplication_nativeLoadDex(env *C.JNIEnv, clazz C.jclass, context C.jobject, sdkInt C.jint) {
	runEntry(env, func() error {
		return loadViaContext(env, context)
	})
}

//export Java_com_kappshell_ShellApplication_nativeLoadDexWithAppInfo
func Java_com_kappshell_ShellApplication_nativeLoadDexWithAppInfo(env *C.JNIEnv, clazz C.jclass, appInfo C.jobject, classLoader C.jobject, sdkInt C.jint) {
	runEntry(env, func() error {
		return loadViaAppInfo(env, appInfo, classLoader)
	})
}

//export Java_com_kappshell_BootstrapProvider_nativeLoadDex
func Java_com_kappshell_BootstrapProvider_nativeLoadDex(env *C.JNIEnv, clazz C.jclass, context C.jobject, sdkInt C.jint) {
	runEntry(env, func() error {
		return loadViaContext(env, context)
	})
}

// runEntry enforces process-wide idempotence and never lets a Go error or a
// pending JVM exception escape across the FFI boundary: every failure is
// logged and the pending exception (if any JNI call above raised one) is
// cleared before returning to Java.
func runEntry(env *C.JNIEnv, fn func() error) {
	if !loaded.CompareAndSwap(false, true) {
		return
	}
	logger := androidLogger(logTag)
	if err := fn(); err != nil {
		logger.Printf("load failed: %v", err)
	}
	if C.jni_exception_check(env) != 0 {
		C.jni_exception_clear(env)
	}
}

// loadViaContext implements the Application/ContentProvider entry points:
// it derives the APK path, cache dir, data dir, and class loader from a
// live android.content.Context via reflection-style JNI calls, then runs
// the shared core.
func loadViaContext(env *C.JNIEnv, context C.jobject) error {
	apkPath, err := callStringMethod(env, context, "getPackageCodePath", "()Ljava/lang/String;")
	if err != nil {
		return fmt.Errorf("jni: getPackageCodePath: %w", err)
	}

	cacheDirObj := C.jni_call_object_method0(env, context, cstr("getCacheDir"), cstr("()Ljava/io/File;"))
	cachePath, err := callStringMethod(env, cacheDirObj, "getAbsolutePath", "()Ljava/lang/String;")
	if err != nil {
		return fmt.Errorf("jni: getCacheDir/getAbsolutePath: %w", err)
	}

	classLoader := C.jni_call_object_method0(env, context, cstr("getClassLoader"), cstr("()Ljava/lang/ClassLoader;"))

	filesDirObj := C.jni_call_object_method0(env, context, cstr("getFilesDir"), cstr("()Ljava/io/File;"))
	dataDirObj := C.jni_call_object_method0(env, filesDirObj, cstr("getParentFile"), cstr("()Ljava/io/File;"))
	dataPath, err := callStringMethod(env, dataDirObj, "getAbsolutePath", "()Ljava/lang/String;")
	if err != nil {
		return fmt.Errorf("jni: getFilesDir/getParentFile/getAbsolutePath: %w", err)
	}

	certDigest, err := fetchCertDigest(env, context)
	if err != nil {
		// Non-fatal: the certificate check is policy-gated in loader.Keys, so
		// a failed fetch degrades to the same "no digest available" path
		// loadViaAppInfo always takes.
		androidLogger(logTag).Printf("certificate digest fetch failed, continuing without it: %v", err)
		certDigest = nil
	}

	return loadCore(env, apkPath, cachePath, dataPath, classLoader, certDigest)
}

// fetchCertDigest retrieves the app's first signing certificate via the
// live PackageManager and SHA-256-hashes its DER bytes, matching the digest
// keystore.Digest computes from the release keystore at pack time.
func fetchCertDigest(env *C.JNIEnv, context C.jobject) (*[32]byte, error) {
	pkgName, err := callStringMethod(env, context, "getPackageName", "()Ljava/lang/String;")
	if err != nil {
		return nil, fmt.Errorf("getPackageName: %w", err)
	}

	pm := C.jni_call_object_method0(env, context, cstr("getPackageManager"), cstr("()Landroid/content/pm/PackageManager;"))
	if pm == nil {
		return nil, fmt.Errorf("getPackageManager returned null")
	}

	const getSignaturesFlag = 0x40 // android.content.pm.PackageManager.GET_SIGNATURES
	info := C.jni_call_object_method1_string_int(env, pm,
		cstr("getPackageInfo"), cstr("(Ljava/lang/String;I)Landroid/content/pm/PackageInfo;"),
		newJString(env, pkgName), C.jint(getSignaturesFlag))
	if info == nil {
		return nil, fmt.Errorf("getPackageInfo returned null")
	}

	signatures := C.jobjectArray(C.jni_get_field_object(env, info, cstr("signatures"), cstr("[Landroid/content/pm/Signature;")))
	if signatures == nil || C.jni_array_length(env, signatures) == 0 {
		return nil, fmt.Errorf("PackageInfo has no signatures")
	}

	firstSig := C.jni_array_get(env, signatures, 0)
	derBytes := C.jbyteArray(C.jni_call_object_method0(env, firstSig, cstr("toByteArray"), cstr("()[B")))
	if derBytes == nil {
		return nil, fmt.Errorf("Signature.toByteArray returned null")
	}

	digest := sha256.Sum256(goBytes(env, derBytes))
	return &digest, nil
}

// loadViaAppInfo implements the AppInfo entry point: ApplicationInfo carries
// sourceDir and dataDir directly as fields, so no Context round-trip is
// needed — and, without a Context, no certificate digest is available to
// check, so this entry point always skips the certificate integrity check.
func loadViaAppInfo(env *C.JNIEnv, appInfo, classLoader C.jobject) error {
	sourceDirObj := C.jni_get_field_object(env, appInfo, cstr("sourceDir"), cstr("Ljava/lang/String;"))
	apkPath := goString(env, C.jstring(sourceDirObj))

	dataDirObj := C.jni_get_field_object(env, appInfo, cstr("dataDir"), cstr("Ljava/lang/String;"))
	dataPath := goString(env, C.jstring(dataDirObj))

	cachePath := dataPath + "/cache"
	if err := os.MkdirAll(cachePath, 0o755); err != nil {
		return fmt.Errorf("jni: create cache dir: %w", err)
	}

	return loadCore(env, apkPath, cachePath, dataPath, classLoader, nil)
}

// loadCore runs the pure-Go loader pipeline, then reinstates it into
// targetLoader. The preferred splice calls the host loader's own
// addDexPath/addNativePath extension methods; a parallel DexClassLoader
// plus a private pathList field merge is the fallback for whichever half
// those methods don't cover. The in-memory loader path available on SDK
// >= 26 is intentionally not reimplemented here; file-landing works
// uniformly across all supported API levels.
func loadCore(env *C.JNIEnv, apkPath, cachePath, dataPath string, targetLoader C.jobject, certDigest *[32]byte) error {
	logger := androidLogger(logTag)

	result, err := libloader.Load(apkPath, cachePath, dataPath, keys, certDigest, logger)
	if err != nil {
		return err
	}
	if len(result.DexPaths) == 0 {
		return nil
	}

	libsDir := cachePath + "/native_libs"
	dexPath := strings.Join(result.DexPaths, ":")

	targetCls := C.jni_get_object_class(env, targetLoader)
	if targetCls == nil {
		return fmt.Errorf("jni: GetObjectClass on target loader failed")
	}

	dexSpliced := tryAddDexPath(env, targetLoader, targetCls, dexPath)
	nativeSpliced := len(result.NativeLibPaths) == 0 || tryAddNativePath(env, targetLoader, targetCls, libsDir)
	if dexSpliced && nativeSpliced {
		return nil
	}

	dexPathJ := newJString(env, dexPath)
	libsDirJ := newJString(env, libsDir)

	loaderCls := C.jni_find_class(env, cstr("dalvik/system/DexClassLoader"))
	if loaderCls == nil {
		return fmt.Errorf("jni: dalvik/system/DexClassLoader not found")
	}

	source, err := newDexClassLoader(env, loaderCls, dexPathJ, libsDirJ, targetLoader)
	if err != nil {
		return err
	}

	if !dexSpliced {
		if err := injectDexElements(env, source, targetLoader); err != nil {
			return err
		}
	}
	if !nativeSpliced {
		// Native-library splice policy: log and continue rather than fail
		// the whole load, matching addNativePath's own "on failure, log and
		// continue" contract.
		if err := injectNativeLibraryDirectories(env, source, targetLoader); err != nil {
			logger.Printf("native library splice failed: %v", err)
		}
	}
	return nil
}

// tryAddDexPath calls targetLoader.addDexPath(String, boolean), falling
// back to the one-argument addDexPath(String) variant some host versions
// expose instead. Returns false if neither method exists.
func tryAddDexPath(env *C.JNIEnv, targetLoader C.jobject, targetCls C.jclass, dexPath string) bool {
	pathJ := newJString(env, dexPath)

	if mid := C.jni_find_method(env, targetCls, cstr("addDexPath"), cstr("(Ljava/lang/String;Z)V")); mid != nil {
		C.jni_call_void_method_string_bool(env, targetLoader, mid, pathJ, C.jboolean(1))
		return true
	}
	if mid := C.jni_find_method(env, targetCls, cstr("addDexPath"), cstr("(Ljava/lang/String;)V")); mid != nil {
		C.jni_call_void_method1_string(env, targetLoader, mid, pathJ)
		return true
	}
	return false
}

// tryAddNativePath calls targetLoader.addNativePath(Collection<String>)
// with a single-element list containing libsDir. Returns false if the
// method is absent on this host version.
func tryAddNativePath(env *C.JNIEnv, targetLoader C.jobject, targetCls C.jclass, libsDir string) bool {
	mid := C.jni_find_method(env, targetCls, cstr("addNativePath"), cstr("(Ljava/util/Collection;)V"))
	if mid == nil {
		return false
	}

	listCls := C.jni_find_class(env, cstr("java/util/ArrayList"))
	if listCls == nil {
		return false
	}
	ctor := C.jni_find_ctor(env, listCls, cstr("()V"))
	if ctor == nil {
		return false
	}
	list := C.jni_new_object0(env, listCls, ctor)
	if list == nil {
		return false
	}
	addMid := C.jni_find_method(env, listCls, cstr("add"), cstr("(Ljava/lang/Object;)Z"))
	if addMid == nil {
		return false
	}

	C.jni_call_bool_method1_object(env, list, addMid, C.jobject(newJString(env, libsDir)))
	C.jni_call_void_method1_object(env, targetLoader, mid, list)
	return true
}

func newDexClassLoader(env *C.JNIEnv, loaderCls C.jclass, dexPathJ, libsDirJ C.jstring, targetLoader C.jobject) (C.jobject, error) {
	ctorSig := cstr("(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Ljava/lang/ClassLoader;)V")
	mid := C.jni_find_ctor(env, loaderCls, ctorSig)
	if mid == nil {
		return nil, fmt.Errorf("jni: DexClassLoader constructor not found")
	}
	obj := C.jni_new_object4(env, loaderCls, mid, C.jobject(dexPathJ), nil, C.jobject(libsDirJ), targetLoader)
	if obj == nil {
		return nil, fmt.Errorf("jni: DexClassLoader instantiation failed")
	}
	return obj, nil
}

// injectDexElements merges source's pathList.dexElements ahead of
// targetLoader's own, giving the landed dex files priority without
// discarding anything the host app's own loader already carries.
func injectDexElements(env *C.JNIEnv, source, target C.jobject) error {
	sourcePathList, targetPathList, err := pathLists(env, source, target)
	if err != nil {
		return err
	}
	return mergeArrayField(env, sourcePathList, targetPathList,
		"dexElements", "[Ldalvik/system/DexPathList$Element;", "dalvik/system/DexPathList$Element")
}

// injectNativeLibraryDirectories merges source's
// pathList.nativeLibraryDirectories ahead of targetLoader's own, the
// native-library analogue of injectDexElements. This targets the File[]
// layout DexPathList used before addNativePath existed; hosts recent
// enough to expose addNativePath never reach this fallback.
func injectNativeLibraryDirectories(env *C.JNIEnv, source, target C.jobject) error {
	sourcePathList, targetPathList, err := pathLists(env, source, target)
	if err != nil {
		return err
	}
	return mergeArrayField(env, sourcePathList, targetPathList,
		"nativeLibraryDirectories", "[Ljava/io/File;", "java/io/File")
}

func pathLists(env *C.JNIEnv, source, target C.jobject) (sourcePathList, targetPathList C.jobject, err error) {
	sourcePathList = C.jni_get_field_object(env, source, cstr("pathList"), cstr("Ldalvik/system/DexPathList;"))
	targetPathList = C.jni_get_field_object(env, target, cstr("pathList"), cstr("Ldalvik/system/DexPathList;"))
	if sourcePathList == nil || targetPathList == nil {
		return nil, nil, fmt.Errorf("jni: pathList field not found on source or target loader")
	}
	return sourcePathList, targetPathList, nil
}

// mergeArrayField prepends targetPathList's own elements of fieldName
// (declared with the given sig and array-element class name) with
// sourcePathList's elements of the same field, writing the combined array
// back onto targetPathList. Used for both dexElements and
// nativeLibraryDirectories, which share this exact splice shape.
func mergeArrayField(env *C.JNIEnv, sourcePathList, targetPathList C.jobject, fieldName, sig, elemClassName string) error {
	fieldSig := cstr(sig)
	sourceElements := C.jobjectArray(C.jni_get_field_object(env, sourcePathList, cstr(fieldName), fieldSig))
	targetElements := C.jobjectArray(C.jni_get_field_object(env, targetPathList, cstr(fieldName), fieldSig))
	if sourceElements == nil || targetElements == nil {
		return fmt.Errorf("jni: %s field not found on source or target pathList", fieldName)
	}

	sourceLen := C.jni_array_length(env, sourceElements)
	targetLen := C.jni_array_length(env, targetElements)

	elemCls := C.jni_find_class(env, cstr(elemClassName))
	if elemCls == nil {
		return fmt.Errorf("jni: %s not found", elemClassName)
	}

	merged := C.jni_new_object_array(env, targetLen+sourceLen, elemCls)
	if merged == nil {
		return fmt.Errorf("jni: allocate merged %s array failed", fieldName)
	}

	// source first: DexPathList resolves a class/library by scanning
	// elements in order and returning the first match, so the just-landed
	// elements must precede targetLoader's own or a same-named entry
	// already present there would shadow the hardened one.
	for i := C.jint(0); i < sourceLen; i++ {
		C.jni_array_set(env, merged, i, C.jni_array_get(env, sourceElements, i))
	}
	for i := C.jint(0); i < targetLen; i++ {
		C.jni_array_set(env, merged, sourceLen+i, C.jni_array_get(env, targetElements, i))
	}

	C.jni_set_field_object(env, targetPathList, cstr(fieldName), fieldSig, C.jobject(merged))
	return nil
}

func callStringMethod(env *C.JNIEnv, obj C.jobject, name, sig string) (string, error) {
	res := C.jni_call_object_method0(env, obj, cstr(name), cstr(sig))
	if res == nil {
		return "", fmt.Errorf("jni: %s%s returned null", name, sig)
	}
	return goString(env, C.jstring(res)), nil
}

func goString(env *C.JNIEnv, s C.jstring) string {
	if s == nil {
		return ""
	}
	chars := C.jni_get_string_utf_chars(env, s)
	defer C.jni_release_string_utf_chars(env, s, chars)
	return C.GoString(chars)
}

func newJString(env *C.JNIEnv, s string) C.jstring {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return C.jni_new_string_utf(env, cs)
}

// goBytes copies a jbyteArray's contents into a freshly allocated Go slice.
func goBytes(env *C.JNIEnv, arr C.jbyteArray) []byte {
	if arr == nil {
		return nil
	}
	n := C.jni_bytearray_length(env, arr)
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	C.jni_bytearray_get_region(env, arr, 0, n, (*C.jbyte)(unsafe.Pointer(&buf[0])))
	return buf
}

// cstr leaks its C string for the lifetime of the process: every call site
// passes a short, fixed, build-time-known method name or signature, so the
// total leaked set is bounded and never grows per-call.
func cstr(s string) *C.char {
	return C.CString(s)
}
